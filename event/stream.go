package event

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Stream manages the on-disk unified event stream: daily shard files,
// a legacy single-file fallback, an archive directory, and the
// sidecar distillation index. All mutating operations are safe for
// concurrent writers across processes via advisory file locking and
// atomic temp-file-then-rename replacement.
type Stream struct {
	streamDir          string
	archiveDir         string
	dailyDir           string
	streamFile         string
	legacyStreamFile   string
	distilledIndexFile string
}

// Open returns a Stream rooted at streamDir, creating the directory
// tree (daily/, archive/) if it does not already exist.
func Open(streamDir string) (*Stream, error) {
	dailyDir := filepath.Join(streamDir, "daily")
	archiveDir := filepath.Join(streamDir, "archive")

	for _, dir := range []string{streamDir, dailyDir, archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("event: create %s: %w", dir, err)
		}
	}

	return &Stream{
		streamDir:          streamDir,
		archiveDir:         archiveDir,
		dailyDir:           dailyDir,
		streamFile:         filepath.Join(streamDir, "events.jsonl"),
		legacyStreamFile:   filepath.Join(streamDir, "events.legacy.jsonl"),
		distilledIndexFile: filepath.Join(streamDir, "distilled-index.jsonl"),
	}, nil
}

// Append writes an event to the stream, routed to its daily shard by
// timestamp, under an exclusive lock with an fsync before release.
func (s *Stream) Append(ev Event) error {
	target := s.dailyFileForTimestamp(ev.Timestamp)

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	unlock, err := lockExclusive(f)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

func (s *Stream) dailyFileForTimestamp(timestamp string) string {
	dateStr := ""
	if len(timestamp) >= 10 {
		dateStr = timestamp[:10]
	}
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}
	return filepath.Join(s.dailyDir, fmt.Sprintf("events-%s.jsonl", dateStr))
}

// iterStreamFiles lists the files to read for the given window,
// ending with whichever legacy file is still relevant: the dedicated
// legacy file (or plain events.jsonl) when no daily shards exist at
// all, and events.jsonl as a catch-all otherwise — matching the
// original migration-era fallback behavior.
func (s *Stream) iterStreamFiles(hours *float64, now time.Time) []string {
	var dailyFiles []string

	entries, err := os.ReadDir(s.dailyDir)
	if err == nil {
		if hours == nil {
			for _, e := range entries {
				if isDailyShardName(e.Name()) {
					dailyFiles = append(dailyFiles, filepath.Join(s.dailyDir, e.Name()))
				}
			}
			sort.Strings(dailyFiles)
		} else {
			startDate := now.Add(-time.Duration(*hours * float64(time.Hour))).Truncate(24 * time.Hour)
			endDate := now.Truncate(24 * time.Hour)
			totalDays := int(endDate.Sub(startDate).Hours() / 24)
			for offset := 0; offset <= totalDays; offset++ {
				date := startDate.AddDate(0, 0, offset)
				path := filepath.Join(s.dailyDir, fmt.Sprintf("events-%s.jsonl", date.Format("2006-01-02")))
				if fileExists(path) {
					dailyFiles = append(dailyFiles, path)
				}
			}
		}
	}

	files := append([]string{}, dailyFiles...)

	var legacyFile string
	if len(dailyFiles) > 0 {
		if fileExists(s.streamFile) {
			legacyFile = s.streamFile
		}
	} else if fileExists(s.legacyStreamFile) {
		legacyFile = s.legacyStreamFile
	} else if fileExists(s.streamFile) {
		legacyFile = s.streamFile
	}
	if legacyFile != "" {
		files = append(files, legacyFile)
	}

	return files
}

func isDailyShardName(name string) bool {
	return strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListStreamFiles exposes the files covering the given window (nil
// for all-time), for use by the validator and migration tooling.
func (s *Stream) ListStreamFiles(hours *float64) []string {
	return s.iterStreamFiles(hours, time.Now().UTC())
}

// QueryOptions filters a Query call.
type QueryOptions struct {
	Hours            *float64
	Surface          Surface
	Type             Type
	IncludeDistilled bool
}

func readLines(path string, fn func(line []byte) bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			break
		}
	}
	return scanner.Err()
}

// Query returns raw event maps matching the given options, decoding
// tolerantly: malformed JSON lines are silently skipped (they are
// reported by the validator and counted by audit, not surfaced here).
func (s *Stream) Query(opts QueryOptions) ([]map[string]interface{}, error) {
	now := time.Now().UTC()
	files := s.iterStreamFiles(opts.Hours, now)
	if len(files) == 0 {
		return nil, nil
	}

	distilledIDs, err := loadDistilledIndex(s.distilledIndexFile)
	if err != nil {
		return nil, err
	}

	var cutoff time.Time
	hasCutoff := false
	if opts.Hours != nil {
		cutoff = now.Add(-time.Duration(*opts.Hours * float64(time.Hour)))
		hasCutoff = true
	}

	var results []map[string]interface{}
	for _, path := range files {
		if err := readLines(path, func(line []byte) bool {
			var data map[string]interface{}
			if err := json.Unmarshal(line, &data); err != nil {
				return true
			}

			isDistilled, _ := data["distilled"].(bool)
			if id, ok := data["id"].(string); ok && distilledIDs[id] {
				isDistilled = true
			}
			if !opts.IncludeDistilled && isDistilled {
				return true
			}
			if isDistilled {
				data["distilled"] = true
			}

			if hasCutoff {
				ts, _ := data["timestamp"].(string)
				eventTime, err := ParseTimestamp(ts)
				if err != nil || eventTime.Before(cutoff) {
					return true
				}
			}

			if opts.Surface != "" {
				if surf, _ := data["surface"].(string); surf != string(opts.Surface) {
					return true
				}
			}
			if opts.Type != "" {
				if typ, _ := data["type"].(string); typ != string(opts.Type) {
					return true
				}
			}

			results = append(results, data)
			return true
		}); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// lookupEventTimestamps scans every stream file for the timestamps of
// the given event IDs, stopping early once all are found.
func (s *Stream) lookupEventTimestamps(ids map[string]bool) (map[string]string, error) {
	timestamps := map[string]string{}
	if len(ids) == 0 {
		return timestamps, nil
	}

	for _, path := range s.iterStreamFiles(nil, time.Now().UTC()) {
		err := readLines(path, func(line []byte) bool {
			var data map[string]interface{}
			if err := json.Unmarshal(line, &data); err != nil {
				return true
			}
			id, _ := data["id"].(string)
			if id == "" || !ids[id] {
				return true
			}
			if ts, ok := data["timestamp"].(string); ok {
				timestamps[id] = ts
			}
			return len(timestamps) < len(ids)
		})
		if err != nil {
			return nil, err
		}
		if len(timestamps) >= len(ids) {
			break
		}
	}
	return timestamps, nil
}

// MarkDistilled records the given event IDs as distilled in the
// sidecar index, skipping any already present. It returns the number
// of events newly marked.
func (s *Stream) MarkDistilled(eventIDs []string) (int, error) {
	idSet := map[string]bool{}
	for _, id := range eventIDs {
		idSet[id] = true
	}
	if len(idSet) == 0 || len(s.iterStreamFiles(nil, time.Now().UTC())) == 0 {
		return 0, nil
	}

	distilled, err := loadDistilledIndex(s.distilledIndexFile)
	if err != nil {
		return 0, err
	}

	pending := map[string]bool{}
	for id := range idSet {
		if !distilled[id] {
			pending[id] = true
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	timestamps, err := s.lookupEventTimestamps(pending)
	if err != nil {
		return 0, err
	}
	if len(timestamps) == 0 {
		return 0, nil
	}

	nowISO := formatTimestamp(time.Now().UTC())
	entries := make([]distilledEntry, 0, len(timestamps))
	for id, ts := range timestamps {
		entries = append(entries, distilledEntry{ID: id, Timestamp: ts, DistilledAt: nowISO})
	}

	if err := appendDistilledIndex(s.distilledIndexFile, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// QueryUndistilled returns undistilled events, optionally filtered to
// an exact date (YYYY-MM-DD) or to strictly before a given date.
func (s *Stream) QueryUndistilled(date, beforeDate string) ([]map[string]interface{}, error) {
	results, err := s.Query(QueryOptions{IncludeDistilled: false})
	if err != nil {
		return nil, err
	}

	filtered := make([]map[string]interface{}, 0, len(results))
	for _, e := range results {
		ts, _ := e["timestamp"].(string)
		if date != "" && !strings.HasPrefix(ts, date) {
			continue
		}
		if beforeDate != "" && (len(ts) < 10 || ts[:10] >= beforeDate) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}

// MarkDistilledBeforeDate marks every undistilled event strictly
// before the given date as distilled.
func (s *Stream) MarkDistilledBeforeDate(beforeDate string) (int, error) {
	if len(s.iterStreamFiles(nil, time.Now().UTC())) == 0 {
		return 0, nil
	}
	undistilled, err := s.QueryUndistilled("", beforeDate)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(undistilled))
	for _, e := range undistilled {
		if id, ok := e["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return s.MarkDistilled(ids)
}

// RebuildDistilledIndex regenerates the sidecar index from the
// in-record `distilled` flag across all stream files, replacing the
// index atomically. Used for recovery after the index and the
// stream's flags have drifted apart.
func (s *Stream) RebuildDistilledIndex() (int, error) {
	files := s.iterStreamFiles(nil, time.Now().UTC())
	if len(files) == 0 {
		return 0, writeDistilledIndexAtomic(s.distilledIndexFile, nil)
	}

	var entries []distilledEntry
	seen := map[string]bool{}
	nowISO := formatTimestamp(time.Now().UTC())

	for _, path := range files {
		err := readLines(path, func(line []byte) bool {
			var data map[string]interface{}
			if err := json.Unmarshal(line, &data); err != nil {
				return true
			}
			distilled, _ := data["distilled"].(bool)
			if !distilled {
				return true
			}
			id, _ := data["id"].(string)
			if id == "" || seen[id] {
				return true
			}
			entry := distilledEntry{ID: id, DistilledAt: nowISO}
			if ts, ok := data["timestamp"].(string); ok && ts != "" {
				entry.Timestamp = ts
			}
			entries = append(entries, entry)
			seen[id] = true
			return true
		})
		if err != nil {
			return 0, err
		}
	}

	if err := writeDistilledIndexAtomic(s.distilledIndexFile, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Archive moves shard files older than daysOld into the archive
// directory wholesale (daily-shard mode), or — when no daily shards
// exist yet — partitions the legacy file's lines by date and appends
// them to per-date archive files before atomically rewriting the
// legacy file with only the retained lines.
func (s *Stream) Archive(daysOld int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)

	entries, err := os.ReadDir(s.dailyDir)
	if err != nil {
		return 0, err
	}
	var dailyFiles []string
	for _, e := range entries {
		if isDailyShardName(e.Name()) {
			dailyFiles = append(dailyFiles, e.Name())
		}
	}
	sort.Strings(dailyFiles)

	if len(dailyFiles) > 0 {
		cutoffDate := cutoff.Format("2006-01-02")
		archived := 0
		for _, name := range dailyFiles {
			dateStr := strings.TrimSuffix(strings.TrimPrefix(name, "events-"), ".jsonl")
			if _, err := time.Parse("2006-01-02", dateStr); err != nil {
				continue
			}
			if dateStr >= cutoffDate {
				continue
			}
			path := filepath.Join(s.dailyDir, name)
			count := 0
			if err := readLines(path, func(line []byte) bool { count++; return true }); err != nil {
				return archived, err
			}
			archived += count
			if err := os.Rename(path, filepath.Join(s.archiveDir, name)); err != nil {
				return archived, err
			}
		}
		return archived, nil
	}

	legacyFile := s.legacyStreamFile
	if !fileExists(legacyFile) {
		legacyFile = s.streamFile
	}
	if !fileExists(legacyFile) {
		return 0, nil
	}

	f, err := os.OpenFile(legacyFile, os.O_RDONLY, 0o644)
	if err != nil {
		return 0, err
	}
	unlock, err := lockExclusive(f)
	if err != nil {
		f.Close()
		return 0, err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var rawLines []string
	for scanner.Scan() {
		rawLines = append(rawLines, scanner.Text())
	}
	scanErr := scanner.Err()
	unlock()
	f.Close()
	if scanErr != nil {
		return 0, scanErr
	}

	var keepLines []string
	archiveByDate := map[string][]string{}
	archived := 0

	for _, raw := range rawLines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
			keepLines = append(keepLines, trimmed)
			continue
		}
		ts, _ := data["timestamp"].(string)
		eventTime, err := ParseTimestamp(ts)
		if err != nil {
			keepLines = append(keepLines, trimmed)
			continue
		}
		reencoded, err := json.Marshal(data)
		if err != nil {
			keepLines = append(keepLines, trimmed)
			continue
		}
		if eventTime.Before(cutoff) {
			dateStr := eventTime.Format("2006-01-02")
			archiveByDate[dateStr] = append(archiveByDate[dateStr], string(reencoded))
			archived++
		} else {
			keepLines = append(keepLines, string(reencoded))
		}
	}

	for dateStr, lines := range archiveByDate {
		archivePath := filepath.Join(s.archiveDir, fmt.Sprintf("events-%s.jsonl", dateStr))
		af, err := os.OpenFile(archivePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return archived, err
		}
		_, writeErr := af.WriteString(strings.Join(lines, "\n") + "\n")
		af.Close()
		if writeErr != nil {
			return archived, writeErr
		}
	}

	dir := filepath.Dir(legacyFile)
	tmp, err := os.CreateTemp(dir, "events-legacy-*.jsonl.tmp")
	if err != nil {
		return archived, err
	}
	if len(keepLines) > 0 {
		if _, err := tmp.WriteString(strings.Join(keepLines, "\n") + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return archived, err
		}
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return archived, err
	}
	if err := os.Rename(tmpPath, legacyFile); err != nil {
		return archived, err
	}

	return archived, nil
}

// MigrateLegacyToDaily splits the legacy events.jsonl file into daily
// shard files grouped by timestamp date prefix, appending to each
// shard under the same exclusive lock Append takes. When keepLegacy is
// false, the (now redundant) legacy file is renamed aside to
// events.legacy.jsonl rather than deleted; if that name is already
// taken, a timestamp suffix is added to it.
func (s *Stream) MigrateLegacyToDaily(keepLegacy bool) (int, error) {
	if !fileExists(s.streamFile) {
		return 0, nil
	}

	eventsByDate := map[string][]string{}
	migrated := 0

	err := readLines(s.streamFile, func(line []byte) bool {
		var data map[string]interface{}
		if err := json.Unmarshal(line, &data); err != nil {
			return true
		}
		ts, _ := data["timestamp"].(string)
		if len(ts) < 10 {
			return true
		}
		dateStr := ts[:10]
		reencoded, err := json.Marshal(data)
		if err != nil {
			return true
		}
		eventsByDate[dateStr] = append(eventsByDate[dateStr], string(reencoded))
		migrated++
		return true
	})
	if err != nil {
		return 0, err
	}

	for dateStr, lines := range eventsByDate {
		dailyPath := filepath.Join(s.dailyDir, fmt.Sprintf("events-%s.jsonl", dateStr))
		f, err := os.OpenFile(dailyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return migrated, err
		}
		unlock, err := lockExclusive(f)
		if err != nil {
			f.Close()
			return migrated, err
		}
		_, writeErr := f.WriteString(strings.Join(lines, "\n") + "\n")
		unlock()
		f.Close()
		if writeErr != nil {
			return migrated, writeErr
		}
	}

	if !keepLegacy {
		target := s.legacyStreamFile
		if fileExists(target) {
			suffix := time.Now().UTC().Format("20060102150405")
			target = filepath.Join(s.streamDir, fmt.Sprintf("events.legacy.%s.jsonl", suffix))
		}
		if err := os.Rename(s.streamFile, target); err != nil {
			return migrated, err
		}
	}

	return migrated, nil
}
