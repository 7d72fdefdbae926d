package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// WriteReportAtomic writes the report as indented JSON to path via a
// temp-file-then-rename, matching the durability pattern used for
// every other mindstream on-disk artifact.
func WriteReportAtomic(path string, report Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "stream-audit-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
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

// FormatText renders the report as the CLI's human-readable summary.
func FormatText(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stream audit (%dh window)\n", r.Counts.WindowHours)
	fmt.Fprintf(&b, "Total events: %d\n", r.Counts.TotalEvents)
	fmt.Fprintf(&b, "Undistilled total: %d\n", r.Counts.UndistilledTotal)

	if r.DigestInclusion.Total.Rate != nil {
		pct := *r.DigestInclusion.Total.Rate * 100
		fmt.Fprintf(&b, "Digest inclusion rate: %.1f%% (%d/%d)\n", pct, r.DigestInclusion.Total.Included, r.DigestInclusion.Total.Eligible)
	} else {
		b.WriteString("Digest inclusion rate: n/a\n")
	}

	if len(r.Gaps.MissingSurfaces) > 0 {
		fmt.Fprintf(&b, "Missing surfaces: %s\n", strings.Join(r.Gaps.MissingSurfaces, ", "))
	}
	if r.Gaps.HandoffStale {
		b.WriteString("Handoff events are stale or missing\n")
	}

	return b.String()
}
