// Package sense implements the Sense Watcher: it ingests
// <name>.event.json files deposited by satellite producers into the
// senses/ directory, converts each into one or more stream events,
// and removes or quarantines the source file so it is never
// re-ingested.
package sense

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	json "github.com/goccy/go-json"

	"github.com/samara-dev/mindstream/event"
)

// senseFile is the tolerant shape of a deposited <name>.event.json.
type senseFile struct {
	Sense     string                 `json:"sense"`
	Summary   string                 `json:"summary"`
	Content   string                 `json:"content"`
	Priority  string                 `json:"priority"`
	SessionID string                 `json:"session_id"`
	Events    []senseFile            `json:"events"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Appender is the subset of *event.Stream the watcher needs, so
// tests can substitute a fake.
type Appender interface {
	Append(ev event.Event) error
}

// Watcher ingests sense files on demand or on a timer.
type Watcher struct {
	sensesDir string
	stream    Appender
}

// New builds a Watcher rooted at the given senses/ directory.
func New(sensesDir string, stream Appender) *Watcher {
	return &Watcher{
		sensesDir: sensesDir,
		stream:    stream,
	}
}

// Result summarizes one ingestion pass.
type Result struct {
	Ingested  int
	Quarantined int
	Errors    []error
}

// RunOnce performs exactly one ingestion pass over senses/.
func (w *Watcher) RunOnce(ctx context.Context) (Result, error) {
	var result Result

	entries, err := os.ReadDir(w.sensesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".event.json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(w.sensesDir, name)
		if err := w.ingestFile(path, name); err != nil {
			result.Errors = append(result.Errors, err)
			if qerr := w.quarantine(path, name, err); qerr != nil {
				result.Errors = append(result.Errors, qerr)
			} else {
				result.Quarantined++
			}
			continue
		}
		result.Ingested++
		_ = os.Remove(path)
	}

	return result, nil
}

// Run loops RunOnce on the given interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) ingestFile(path, name string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	var sf senseFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	items := sf.Events
	if len(items) == 0 {
		items = []senseFile{sf}
	}

	for i, item := range items {
		ev, err := w.toEvent(name, item)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		if err := w.stream.Append(ev); err != nil {
			return fmt.Errorf("append %s[%d]: %w", name, i, err)
		}
	}
	return nil
}

func (w *Watcher) toEvent(fileName string, sf senseFile) (event.Event, error) {
	surface := event.Surface(sf.Sense)
	if sf.Sense == "" || !surface.Valid() {
		surface = event.SurfaceSense
	}

	summary := sf.Summary
	if summary == "" {
		summary = strings.TrimSuffix(fileName, ".event.json") + " sense event"
	}

	metadata := sf.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if sf.Priority != "" {
		metadata["priority"] = sf.Priority
	}
	metadata["source_file"] = fileName

	return event.New(event.NewParams{
		Surface:   surface,
		Type:      event.TypeSense,
		Direction: event.DirectionInbound,
		Summary:   summary,
		Content:   sf.Content,
		SessionID: sf.SessionID,
		Metadata:  metadata,
	})
}

func (w *Watcher) quarantine(path, name string, cause error) error {
	rejectedDir := filepath.Join(w.sensesDir, "rejected")
	if err := os.MkdirAll(rejectedDir, 0o755); err != nil {
		return err
	}

	id := uuid.NewString()
	base := strings.TrimSuffix(name, ".event.json")
	destName := fmt.Sprintf("%s-%s.event.json", base, id)
	dest := filepath.Join(rejectedDir, destName)

	raw, readErr := os.ReadFile(path)
	if readErr == nil {
		if err := os.WriteFile(dest, raw, 0o644); err != nil {
			return err
		}
	}
	_ = os.Remove(path)

	errPath := filepath.Join(rejectedDir, destName+".error.txt")
	return os.WriteFile(errPath, []byte(cause.Error()+"\n"), 0o644)
}
