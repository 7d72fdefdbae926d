// Package threads maintains the durable index of open topical threads
// parsed from session handoff records.
package threads

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
)

// ClosedStatuses names the thread statuses treated as no-longer-open.
var ClosedStatuses = map[string]bool{
	"closed":    true,
	"done":      true,
	"resolved":  true,
	"complete":  true,
	"completed": true,
	"archived":  true,
}

// Source records where a thread's open state was last observed.
type Source struct {
	HandoffPath string `json:"handoff_path"`
	SessionID   string `json:"session_id,omitempty"`
}

// Record is a single tracked thread.
type Record struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Source Source `json:"source"`
}

// document is the on-disk threads.json shape.
type document struct {
	Threads []Record `json:"threads"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeTitle collapses internal whitespace and lowercases a title
// so that ID derivation is stable regardless of incidental formatting.
func NormalizeTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	collapsed := whitespaceRun.ReplaceAllString(trimmed, " ")
	return strings.ToLower(collapsed)
}

// IDForTitle derives the stable thread_<10hex> identifier for a title.
func IDForTitle(title string) string {
	normalized := NormalizeTitle(title)
	sum := sha1.Sum([]byte(normalized))
	return "thread_" + hex.EncodeToString(sum[:])[:10]
}

var (
	bulletDash      = regexp.MustCompile(`^[-*]\s+`)
	bulletNumbered  = regexp.MustCompile(`^[0-9]+[.)]\s+`)
	bulletCheckbox  = regexp.MustCompile(`^\[[ xX]\]\s+`)
)

// ExtractSection returns the lines between a "## <header>" line
// (case-insensitive) and the next "## " header, exclusive of both.
func ExtractSection(text, header string) []string {
	lines := strings.Split(text, "\n")
	target := strings.ToLower("## " + header)

	var collected []string
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.ToLower(trimmed) == target {
			inSection = true
			continue
		}
		if inSection {
			if strings.HasPrefix(trimmed, "## ") {
				break
			}
			collected = append(collected, line)
		}
	}
	return collected
}

// ParseOpenThreads extracts thread titles from a handoff document's
// "## Open Threads" section, stripping list-marker prefixes. A lone
// "None identified." line yields an empty list.
func ParseOpenThreads(text string) []string {
	lines := ExtractSection(text, "Open Threads")

	var titles []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.ToLower(trimmed) == "none identified." {
			return nil
		}

		cleaned := bulletDash.ReplaceAllString(trimmed, "")
		cleaned = bulletNumbered.ReplaceAllString(cleaned, "")
		cleaned = bulletCheckbox.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)

		if cleaned != "" {
			titles = append(titles, cleaned)
		}
	}
	return titles
}

var sessionIDPattern = regexp.MustCompile(`(?m)^\*\*Session ID:\*\*\s*(\S+)`)

// ParseSessionID extracts the handoff's **Session ID:** value, if any.
func ParseSessionID(text string) string {
	m := sessionIDPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// Load reads threads.json, tolerating a missing or malformed file as
// an empty thread list.
func Load(path string) []Record {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc.Threads
	}

	var list []Record
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	return nil
}

// Update merges freshly parsed open-thread titles into the existing
// record set: existing records matching a derived ID are refreshed in
// place, new titles become new records, and every record not
// referenced by this handoff is preserved unchanged. Returns the full
// updated record set and the IDs touched by this call.
func Update(existing []Record, openTitles []string, handoffPath, sessionID string) ([]Record, []string) {
	byID := map[string]int{}
	for i, r := range existing {
		if r.ID != "" {
			byID[r.ID] = i
		}
	}

	var updated []Record
	var updatedIDs []string
	touched := map[string]bool{}

	for _, title := range openTitles {
		id := IDForTitle(title)
		var rec Record
		if idx, ok := byID[id]; ok {
			rec = existing[idx]
		}
		rec.ID = id
		rec.Title = title
		rec.Status = "open"
		rec.Source = Source{HandoffPath: handoffPath, SessionID: sessionID}

		updated = append(updated, rec)
		updatedIDs = append(updatedIDs, id)
		touched[id] = true
	}

	for _, r := range existing {
		if r.ID == "" || touched[r.ID] {
			continue
		}
		updated = append(updated, r)
	}

	return updated, updatedIDs
}

// WriteAtomic persists the thread records to path via temp-file then
// rename, so readers never observe a partially written file.
func WriteAtomic(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc := document{Threads: records}
	if doc.Threads == nil {
		doc.Threads = []Record{}
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(dir, "threads-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// IndexHandoff parses a handoff file and merges its open threads into
// threads.json at threadsPath, writing the result atomically. It
// returns the full updated record set and the IDs touched.
func IndexHandoff(handoffPath, threadsPath string) ([]Record, []string, error) {
	raw, err := os.ReadFile(handoffPath)
	if err != nil {
		return nil, nil, err
	}
	text := string(raw)

	openTitles := ParseOpenThreads(text)
	existing := Load(threadsPath)
	if len(openTitles) == 0 {
		return existing, nil, nil
	}

	sessionID := ParseSessionID(text)
	updated, touchedIDs := Update(existing, openTitles, handoffPath, sessionID)

	if err := WriteAtomic(threadsPath, updated); err != nil {
		return updated, touchedIDs, err
	}
	return updated, touchedIDs, nil
}

// OpenRecords filters records to those whose status is not in
// ClosedStatuses (case-insensitive).
func OpenRecords(records []Record) []Record {
	var open []Record
	for _, r := range records {
		if !ClosedStatuses[strings.ToLower(r.Status)] {
			open = append(open, r)
		}
	}
	return open
}
