package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samara-dev/mindstream/metrics"
)

func TestAdaptiveWindowHoursClamps(t *testing.T) {
	tuning := DefaultWindowTuning()

	quiet := metrics.EventMetrics{LongRate: 0.01, Velocity: 0.5}
	assert.Equal(t, tuning.MaxHours, AdaptiveWindowHours(quiet, tuning))

	busy := metrics.EventMetrics{LongRate: 50, Velocity: 10}
	assert.Equal(t, tuning.MinHours, AdaptiveWindowHours(busy, tuning))
}

func TestBuildProducesSectionsNewestFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T11:00:00Z", "surface": "cli", "summary": "older cli event"},
		{"timestamp": "2025-06-01T11:30:00Z", "surface": "cli", "summary": "newer cli event"},
		{"timestamp": "2025-06-01T11:45:00Z", "surface": "imessage", "summary": "chat message"},
	}

	hours := 6.0
	result, err := Build(context.Background(), events, Request{Hours: &hours, Now: now})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "### Conversations")
	assert.Contains(t, result.Text, "### Sessions")
	convIdx := indexOf(result.Text, "### Conversations")
	sessIdx := indexOf(result.Text, "### Sessions")
	assert.Less(t, convIdx, sessIdx)

	newerIdx := indexOf(result.Text, "newer cli event")
	olderIdx := indexOf(result.Text, "older cli event")
	assert.Less(t, newerIdx, olderIdx)
}

func TestBuildCapsSystemEventsSection(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var events []map[string]interface{}
	for i := 0; i < 15; i++ {
		events = append(events, map[string]interface{}{
			"timestamp": "2025-06-01T11:0" + string(rune('0'+i%10)) + ":00Z",
			"surface":   "system",
			"summary":   "system tick",
		})
	}
	hours := 6.0
	result, err := Build(context.Background(), events, Request{Hours: &hours, Now: now})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.SectionCounts["System Events"], senseSectionCap)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
