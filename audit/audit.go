// Package audit implements the Stream Audit: coverage and
// digest-inclusion metrics computed over a window of events and a
// rendered digest.
package audit

import (
	"strings"
	"time"

	"github.com/samara-dev/mindstream/event"
)

// DefaultWindowHours and DefaultDigestHours match the CLI defaults.
const (
	DefaultWindowHours = 168
	DefaultDigestHours = 12
)

// Counts summarizes the window's event population.
type Counts struct {
	WindowHours      int            `json:"window_hours"`
	TotalEvents      int            `json:"total_events"`
	BySurface        map[string]int `json:"by_surface"`
	ByType           map[string]int `json:"by_type"`
	ByDirection      map[string]int `json:"by_direction"`
	UndistilledTotal int            `json:"undistilled_total"`
}

// SurfaceInclusion is one surface's digest-inclusion rate.
type SurfaceInclusion struct {
	Eligible int      `json:"eligible"`
	Included int      `json:"included"`
	Rate     *float64 `json:"rate"`
}

// Inclusion reports how much of the eligible, summary-bearing events
// made it into the rendered digest text, case-insensitively.
type Inclusion struct {
	Total     SurfaceInclusion            `json:"total"`
	BySurface map[string]SurfaceInclusion `json:"by_surface"`
}

// Gaps reports coverage holes: surfaces unseen in the window, and
// handoff staleness.
type Gaps struct {
	MissingSurfaces  []string `json:"missing_surfaces"`
	HandoffStale     bool     `json:"handoff_stale"`
	HandoffLastSeen  *string  `json:"handoff_last_seen"`
}

// Report is the full audit output.
type Report struct {
	GeneratedAt       string    `json:"generated_at"`
	DigestWindowHours int       `json:"digest_window_hours"`
	Counts            Counts    `json:"counts"`
	DigestInclusion   Inclusion `json:"digest_inclusion"`
	Gaps              Gaps      `json:"gaps"`
}

// Options configures one audit pass.
type Options struct {
	Now              time.Time
	WindowHours      int
	DigestHours      int
	DisabledSurfaces map[string]bool
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	if o.WindowHours <= 0 {
		o.WindowHours = DefaultWindowHours
	}
	if o.DigestHours <= 0 {
		o.DigestHours = DefaultDigestHours
	}
	return o
}

func filterByHours(events []map[string]interface{}, hours int, now time.Time) []map[string]interface{} {
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	var out []map[string]interface{}
	for _, e := range events {
		ts, _ := e["timestamp"].(string)
		t, err := event.ParseTimestamp(ts)
		if err != nil || t.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func countByField(events []map[string]interface{}, field string) map[string]int {
	counts := map[string]int{}
	for _, e := range events {
		v, ok := e[field].(string)
		if !ok || v == "" {
			continue
		}
		counts[v]++
	}
	return counts
}

func summaryInDigest(summary, digest string) bool {
	if summary == "" || digest == "" {
		return false
	}
	return strings.Contains(strings.ToLower(digest), strings.ToLower(summary))
}

func computeDigestInclusion(events []map[string]interface{}, digest string) Inclusion {
	var eligible []map[string]interface{}
	for _, e := range events {
		if s, _ := e["summary"].(string); s != "" {
			eligible = append(eligible, e)
		}
	}

	var included []map[string]interface{}
	for _, e := range eligible {
		s, _ := e["summary"].(string)
		if summaryInDigest(s, digest) {
			included = append(included, e)
		}
	}

	total := SurfaceInclusion{Eligible: len(eligible), Included: len(included), Rate: rateOf(len(included), len(eligible))}

	bySurface := map[string]SurfaceInclusion{}
	surfaceSet := map[string]bool{}
	for _, e := range eligible {
		if s, _ := e["surface"].(string); s != "" {
			surfaceSet[s] = true
		}
	}
	for surface := range surfaceSet {
		var surfEligible, surfIncluded int
		for _, e := range eligible {
			if s, _ := e["surface"].(string); s == surface {
				surfEligible++
			}
		}
		for _, e := range included {
			if s, _ := e["surface"].(string); s == surface {
				surfIncluded++
			}
		}
		bySurface[surface] = SurfaceInclusion{
			Eligible: surfEligible,
			Included: surfIncluded,
			Rate:     rateOf(surfIncluded, surfEligible),
		}
	}

	return Inclusion{Total: total, BySurface: bySurface}
}

func rateOf(included, eligible int) *float64 {
	if eligible == 0 {
		return nil
	}
	rate := float64(included) / float64(eligible)
	return &rate
}

func computeGaps(windowEvents, allEvents []map[string]interface{}, now time.Time, windowHours int, disabled map[string]bool) Gaps {
	seen := map[string]bool{}
	for _, e := range windowEvents {
		if s, _ := e["surface"].(string); s != "" {
			seen[s] = true
		}
	}

	var missing []string
	for _, s := range event.AllSurfaces {
		name := string(s)
		if seen[name] || disabled[name] {
			continue
		}
		missing = append(missing, name)
	}
	sortStrings(missing)

	var lastHandoff *time.Time
	for _, e := range allEvents {
		if t, _ := e["type"].(string); t != "handoff" {
			continue
		}
		ts, _ := e["timestamp"].(string)
		parsed, err := event.ParseTimestamp(ts)
		if err != nil {
			continue
		}
		if lastHandoff == nil || parsed.After(*lastHandoff) {
			lastHandoff = &parsed
		}
	}

	stale := lastHandoff == nil
	if lastHandoff != nil {
		ageHours := now.Sub(*lastHandoff).Hours()
		if ageHours > float64(windowHours) {
			stale = true
		}
	}

	var lastSeen *string
	if lastHandoff != nil {
		s := lastHandoff.UTC().Format("2006-01-02T15:04:05Z")
		lastSeen = &s
	}

	return Gaps{MissingSurfaces: missing, HandoffStale: stale, HandoffLastSeen: lastSeen}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// AuditStream computes the full audit report.
func AuditStream(events []map[string]interface{}, digestText string, opts Options) Report {
	opts = opts.withDefaults()

	windowEvents := filterByHours(events, opts.WindowHours, opts.Now)
	digestEvents := filterByHours(events, opts.DigestHours, opts.Now)

	undistilled := 0
	for _, e := range events {
		if d, _ := e["distilled"].(bool); !d {
			undistilled++
		}
	}

	counts := Counts{
		WindowHours:      opts.WindowHours,
		TotalEvents:      len(windowEvents),
		BySurface:        countByField(windowEvents, "surface"),
		ByType:           countByField(windowEvents, "type"),
		ByDirection:      countByField(windowEvents, "direction"),
		UndistilledTotal: undistilled,
	}

	return Report{
		GeneratedAt:       opts.Now.UTC().Format("2006-01-02T15:04:05Z"),
		DigestWindowHours: opts.DigestHours,
		Counts:            counts,
		DigestInclusion:   computeDigestInclusion(digestEvents, digestText),
		Gaps:              computeGaps(windowEvents, events, opts.Now, opts.WindowHours, opts.DisabledSurfaces),
	}
}
