package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T, now time.Time, opts ...Option) *Evaluator {
	t.Helper()
	dir := t.TempDir()
	e := New(
		filepath.Join(dir, "last-proactive-trigger.txt"),
		filepath.Join(dir, "episodes"),
		filepath.Join(dir, "trigger-evaluations.jsonl"),
		opts...,
	)
	return e.WithClock(func() time.Time { return now })
}

func TestCheckQuietHoursBlocksLateNight(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)
	sg := e.checkQuietHours(now)
	assert.True(t, sg.Blocked)
}

func TestCheckQuietHoursAllowsMidday(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)
	sg := e.checkQuietHours(now)
	assert.False(t, sg.Blocked)
}

func TestCheckCooldownBlocksWithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)
	require.NoError(t, e.RecordEngagement())

	later := now.Add(30 * time.Minute)
	e2 := e.WithClock(func() time.Time { return later })
	sg := e2.checkCooldown(later)
	assert.True(t, sg.Blocked)
}

func TestCheckCooldownAllowsAfterWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)
	require.NoError(t, e.RecordEngagement())

	later := now.Add(90 * time.Minute)
	e2 := e.WithClock(func() time.Time { return later })
	sg := e2.checkCooldown(later)
	assert.False(t, sg.Blocked)
}

func TestCheckRecentInteractionBlocksWhenEpisodeRecent(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)
	require.NoError(t, os.MkdirAll(e.episodesDir, 0o755))
	content := "## 14: Talked about the project\nSome notes.\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.episodesDir, "2025-06-01.md"), []byte(content), 0o644))

	sg := e.checkRecentInteraction(now)
	assert.True(t, sg.Blocked)
}

func TestEvaluateBlockedByQuietHoursSkipsTriggers(t *testing.T) {
	now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)

	eval := e.Evaluate(context.Background(), "")
	assert.True(t, eval.Blocked)
	assert.Equal(t, EscalationBlocked, eval.EscalationLevel)
	assert.Nil(t, eval.FusedTrigger)
}

type fakePatternSource struct{ p Patterns }

func (f fakePatternSource) Patterns(context.Context) (Patterns, error) { return f.p, nil }

func TestEvaluateFusesHighestConfidenceAnomaly(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	patterns := Patterns{}
	patterns.Anomalies.Anomalies = []Anomaly{
		{Severity: "low", Description: "minor blip"},
		{Severity: "high", Description: "major deviation"},
	}

	e := newTestEvaluator(t, now, WithPatterns(fakePatternSource{p: patterns}))
	eval := e.Evaluate(context.Background(), "")

	require.NotNil(t, eval.FusedTrigger)
	assert.Equal(t, "anomaly", eval.FusedTrigger.Type)
	assert.Equal(t, 0.7, eval.FusedTrigger.Confidence)
	assert.Equal(t, EscalationWake, eval.EscalationLevel)
}

type suppressingLocationSource struct{}

func (suppressingLocationSource) Triggers(context.Context) ([]LocationTriggerInput, error) {
	return []LocationTriggerInput{{Type: "geofence", SuppressEngagement: true}}, nil
}
func (suppressingLocationSource) BatteryTriggers(context.Context) ([]BatteryTriggerInput, error) {
	return nil, nil
}
func (suppressingLocationSource) CurrentPlace(context.Context) (string, bool) { return "", false }

func TestEvaluateLocationSuppressionShortCircuits(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now, WithLocation(suppressingLocationSource{}))
	eval := e.Evaluate(context.Background(), "")
	assert.Equal(t, EscalationSuppressed, eval.EscalationLevel)
}

func TestEvaluateThenGetEscalationSummary(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	e := newTestEvaluator(t, now)

	e.Evaluate(context.Background(), "")
	summary, err := e.GetEscalationSummary(10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Counts[EscalationLog])
}

func TestFileCalendarSourceUpcomingEvents(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar-cache.json")
	doc := `{"events":[{"start":"2025-06-01T14:20:00Z","title":"Standup","end":"2025-06-01T14:30:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	src := NewFileCalendarSource(path)
	src.now = func() time.Time { return now }

	events, err := src.UpcomingEvents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Title)
}
