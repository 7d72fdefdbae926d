// Package digest implements the Hot Digest Builder: an adaptive-window
// compressor that turns recent stream events into a bounded,
// section-organized markdown narrative suitable for injection into
// reasoning context.
package digest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samara-dev/mindstream/event"
	"github.com/samara-dev/mindstream/metrics"
	"github.com/samara-dev/mindstream/summarize"
	"github.com/samara-dev/mindstream/threads"
)

var conversationalSurfaces = map[string]bool{
	"imessage": true, "x": true, "bluesky": true, "email": true,
}

var activitySurfaces = map[string]bool{
	"cli": true, "wake": true, "dream": true,
}

var senseSurfaces = map[string]bool{
	"webhook": true, "location": true, "calendar": true, "sense": true, "system": true,
}

const senseSectionCap = 10

// groupWindowMinutes is the width of the time window sessions/activity
// bullets are collapsed into, matching the original's
// group_events_by_window default.
const groupWindowMinutes = 30

// sectionWeights allocates the token budget across sections before
// falling back to strict fill-until-full, matching the original's
// TOKEN_WEIGHTS: conversations matter most for continuity, sessions
// next, system/sense events are the most compact and least important.
var sectionWeights = map[string]float64{
	"Conversations": 0.50,
	"Sessions":      0.35,
	"System Events": 0.15,
}

// WindowTuning holds the adaptive-window parameters, overridable via
// config.json's stream.hot_digest block.
type WindowTuning struct {
	MinHours   float64
	MaxHours   float64
	BaseHours  float64
	TargetRate float64
}

// DefaultWindowTuning matches the spec's documented defaults.
func DefaultWindowTuning() WindowTuning {
	return WindowTuning{MinHours: 2, MaxHours: 24, BaseHours: 12, TargetRate: 10}
}

func (t WindowTuning) withDefaults() WindowTuning {
	d := DefaultWindowTuning()
	if t.MinHours <= 0 {
		t.MinHours = d.MinHours
	}
	if t.MaxHours <= 0 {
		t.MaxHours = d.MaxHours
	}
	if t.BaseHours <= 0 {
		t.BaseHours = d.BaseHours
	}
	if t.TargetRate <= 0 {
		t.TargetRate = d.TargetRate
	}
	return t
}

// clamp restricts v to [lo, hi].
func clamp(lo, v, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AdaptiveWindowHours computes the digest window length from the
// trailing metrics, per the spec's formula: base * target_rate /
// max(long_rate, 0.1) / max(velocity, 1), clamped to [min, max].
func AdaptiveWindowHours(m metrics.EventMetrics, tuning WindowTuning) float64 {
	tuning = tuning.withDefaults()

	longRate := math.Max(m.LongRate, 0.1)
	velocity := math.Max(m.Velocity, 1)

	window := tuning.BaseHours * tuning.TargetRate / longRate / velocity
	return clamp(tuning.MinHours, window, tuning.MaxHours)
}

// estimateTokens is a cheap chars/4 approximation, used both for the
// section budget and for deciding whether a bullet's optional content
// still fits.
func estimateTokens(text string) int {
	return len(text) / 4
}

// Request configures a single digest build.
type Request struct {
	Hours        *float64 // nil means "auto" adaptive windowing
	MaxTokens    int      // default 3000
	Tuning       WindowTuning
	ThreadsPath  string // path to state/threads.json; empty disables the prologue
	Summarizer   summarize.Summarizer
	Now          time.Time
	CacheOutPath string
	CacheTTL     time.Duration
}

// Result is the digest text plus the metadata the spec calls for when
// a caller wants to introspect the build.
type Result struct {
	Text          string
	WindowHours   float64
	EventCount    int
	SectionCounts map[string]int
	FromCache     bool
}

func formatTimeAgo(ts string, now time.Time) string {
	t, err := event.ParseTimestamp(ts)
	if err != nil {
		return "recently"
	}
	delta := now.Sub(t)
	switch {
	case delta < time.Hour:
		return fmt.Sprintf("%dm ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(delta.Hours()/24))
	}
}

func sortNewestFirst(events []map[string]interface{}) []map[string]interface{} {
	sorted := append([]map[string]interface{}{}, events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := sorted[i]["timestamp"].(string)
		tj, _ := sorted[j]["timestamp"].(string)
		return ti > tj
	})
	return sorted
}

func sectionFor(surface string) string {
	switch {
	case conversationalSurfaces[surface]:
		return "Conversations"
	case activitySurfaces[surface]:
		return "Sessions"
	default:
		return "System Events"
	}
}

func bulletFor(e map[string]interface{}, now time.Time, remainingTokens int) (string, int) {
	ts, _ := e["timestamp"].(string)
	surface, _ := e["surface"].(string)
	summary, _ := e["summary"].(string)

	bullet := fmt.Sprintf("- **%s [%s]** %s", formatTimeAgo(ts, now), surface, summary)
	used := estimateTokens(bullet)

	if content, ok := e["content"].(string); ok && content != "" {
		contentLine := "  " + content
		contentCost := estimateTokens(contentLine)
		if used+contentCost <= remainingTokens {
			bullet += "\n" + contentLine
			used += contentCost
		}
	}

	return bullet, used
}

// groupEventsByWindow collapses newest-first events into runs where
// consecutive events fall within windowMinutes of the run's first
// (newest) event, matching the original's group_events_by_window: the
// window anchor is fixed at the run's first event, not rolled forward
// per event.
func groupEventsByWindow(events []map[string]interface{}, windowMinutes int) [][]map[string]interface{} {
	if len(events) == 0 {
		return nil
	}
	sorted := sortNewestFirst(events)
	window := time.Duration(windowMinutes) * time.Minute

	var groups [][]map[string]interface{}
	var current []map[string]interface{}
	var windowStart time.Time

	for _, e := range sorted {
		ts, _ := e["timestamp"].(string)
		t, err := event.ParseTimestamp(ts)
		if err != nil {
			continue
		}
		switch {
		case len(current) == 0:
			windowStart = t
			current = []map[string]interface{}{e}
		case windowStart.Sub(t) <= window:
			current = append(current, e)
		default:
			groups = append(groups, current)
			current = []map[string]interface{}{e}
			windowStart = t
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// bulletForGroup renders one time-window group as a heading bullet
// with a sub-bullet per event, truncating the group (not just
// skipping it whole) when the remaining budget runs out mid-group.
func bulletForGroup(group []map[string]interface{}, now time.Time, remainingTokens int) (string, int) {
	if len(group) == 0 {
		return "", 0
	}
	ts, _ := group[0]["timestamp"].(string)
	header := fmt.Sprintf("- **%s**", formatTimeAgo(ts, now))
	used := estimateTokens(header)
	if used > remainingTokens {
		return "", 0
	}

	var lines []string
	for _, e := range group {
		surface, _ := e["surface"].(string)
		summary, _ := e["summary"].(string)
		line := fmt.Sprintf("  - [%s] %s", surface, summary)
		cost := estimateTokens(line)
		if used+cost > remainingTokens {
			break
		}
		lines = append(lines, line)
		used += cost
	}
	if len(lines) == 0 {
		return "", 0
	}
	return header + "\n" + strings.Join(lines, "\n"), used
}

// Build assembles the digest text from the given events (already
// loaded by the caller, e.g. via event.Stream.Query).
func Build(ctx context.Context, events []map[string]interface{}, req Request) (Result, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 3000
	}

	if req.CacheOutPath != "" && req.CacheTTL > 0 {
		if cached, ok := readCache(req.CacheOutPath, req.CacheTTL, now); ok {
			return Result{Text: cached, FromCache: true}, nil
		}
	}

	windowHours := 0.0
	if req.Hours != nil {
		windowHours = *req.Hours
	} else {
		m := metrics.Compute(events, now, metrics.ComputeOptions{LongHours: req.Tuning.withDefaults().MaxHours})
		windowHours = AdaptiveWindowHours(m, req.Tuning)
	}

	windowed := metrics.FilterByHours(events, windowHours, now)

	sections := map[string][]map[string]interface{}{
		"Conversations": nil,
		"Sessions":      nil,
		"System Events": nil,
	}
	for _, e := range windowed {
		surface, _ := e["surface"].(string)
		name := sectionFor(surface)
		sections[name] = append(sections[name], e)
	}

	var b strings.Builder
	budget := maxTokens
	sectionCounts := map[string]int{}

	if req.ThreadsPath != "" {
		if openBullets := openThreadsBullets(req.ThreadsPath); len(openBullets) > 0 {
			b.WriteString("### Open Threads\n")
			for _, bullet := range openBullets {
				b.WriteString(bullet)
				b.WriteString("\n")
			}
			b.WriteString("\n")
			budget -= estimateTokens(b.String())
		}
	}

	// Each section gets its weighted share of what's left of the
	// budget; whatever a section doesn't use rolls over to the next
	// one in priority order, so the senseSectionCap upper bound still
	// holds regardless of how the weighting lands.
	totalBudget := budget
	order := []string{"Conversations", "Sessions", "System Events"}
	rollover := 0
	for _, name := range order {
		items := sortNewestFirst(sections[name])
		if name == "System Events" && len(items) > senseSectionCap {
			items = items[:senseSectionCap]
		}

		share := int(sectionWeights[name]*float64(totalBudget)) + rollover
		if share > budget {
			share = budget
		}
		if share <= 0 {
			rollover = 0
			continue
		}

		var body strings.Builder
		count := 0
		used := 0

		if name == "Sessions" {
			for _, group := range groupEventsByWindow(items, groupWindowMinutes) {
				bullet, cost := bulletForGroup(group, now, share-used)
				if bullet == "" {
					break
				}
				body.WriteString(bullet)
				body.WriteString("\n")
				used += cost
				count += len(group)
			}
		} else {
			for _, it := range items {
				bullet, cost := bulletFor(it, now, share-used)
				if cost > share-used {
					break
				}
				body.WriteString(bullet)
				body.WriteString("\n")
				used += cost
				count++
			}
		}

		budget -= used
		rollover = share - used

		if count == 0 {
			continue
		}

		b.WriteString("### " + name + "\n")
		b.WriteString(body.String())
		b.WriteString("\n")
		sectionCounts[name] = count
	}

	text := strings.TrimRight(b.String(), "\n") + "\n"

	if req.Summarizer != nil {
		if summarized, err := req.Summarizer.Summarize(ctx, windowed); err == nil && strings.TrimSpace(summarized) != "" {
			text = summarized
		}
	}

	if req.CacheOutPath != "" {
		_ = writeCacheAtomic(req.CacheOutPath, text)
	}

	return Result{
		Text:          text,
		WindowHours:   windowHours,
		EventCount:    len(windowed),
		SectionCounts: sectionCounts,
	}, nil
}

func openThreadsBullets(threadsPath string) []string {
	records := threads.OpenRecords(threads.Load(threadsPath))
	bullets := make([]string, 0, len(records))
	for _, r := range records {
		bullets = append(bullets, "- "+r.Title)
	}
	return bullets
}

func readCache(path string, ttl time.Duration, now time.Time) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if now.Sub(info.ModTime()) > ttl {
		return "", false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func writeCacheAtomic(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "hot-digest-*.md.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
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
