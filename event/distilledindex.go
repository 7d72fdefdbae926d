package event

import (
	"bufio"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// distilledEntry is one line of the sidecar distillation index.
type distilledEntry struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp,omitempty"`
	DistilledAt string `json:"distilled_at"`
}

// loadDistilledIndex reads every event ID the sidecar index has ever
// recorded. A missing index file is an empty set, not an error.
func loadDistilledIndex(path string) (map[string]bool, error) {
	ids := map[string]bool{}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry distilledEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.ID != "" {
			ids[entry.ID] = true
		}
	}
	return ids, nil
}

// appendDistilledIndex appends entries to the sidecar index under an
// exclusive lock, fsyncing before release so a crash never loses a
// completed mark.
func appendDistilledIndex(path string, entries []distilledEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	unlock, err := lockExclusive(f)
	if err != nil {
		return err
	}
	defer unlock()

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// writeDistilledIndexAtomic replaces the sidecar index wholesale via
// temp-file-then-rename, used by rebuild.
func writeDistilledIndexAtomic(path string, entries []distilledEntry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "distilled-index-*.jsonl.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
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
