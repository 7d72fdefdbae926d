package summarize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNarrativeGroupsBySurface(t *testing.T) {
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T10:00:00Z", "id": "1", "surface": "cli", "summary": "ran tests."},
		{"timestamp": "2025-06-01T10:05:00Z", "id": "2", "surface": "imessage", "summary": "said hi"},
		{"timestamp": "2025-06-01T10:10:00Z", "id": "3", "surface": "cli", "summary": "fixed bug"},
	}

	narrative := BuildNarrative(events, 3)
	assert.Contains(t, narrative, "CLI activity: ran tests; fixed bug.")
	assert.Contains(t, narrative, "iMessage activity: said hi.")
}

func TestBuildNarrativeCapsPerSurface(t *testing.T) {
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T10:00:00Z", "id": "1", "surface": "cli", "summary": "one"},
		{"timestamp": "2025-06-01T10:01:00Z", "id": "2", "surface": "cli", "summary": "two"},
		{"timestamp": "2025-06-01T10:02:00Z", "id": "3", "surface": "cli", "summary": "three"},
		{"timestamp": "2025-06-01T10:03:00Z", "id": "4", "surface": "cli", "summary": "four"},
	}
	narrative := BuildNarrative(events, 2)
	assert.Equal(t, "CLI activity: one; two.", narrative)
}

func TestBuildNarrativeSkipsEmptyEvents(t *testing.T) {
	assert.Empty(t, BuildNarrative(nil, 3))
}

func TestFallbackSummarizerNeverErrors(t *testing.T) {
	f := NewFallback()
	out, err := f.Summarize(context.Background(), []map[string]interface{}{
		{"timestamp": "2025-06-01T10:00:00Z", "id": "1", "surface": "wake", "summary": "woke up"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Wake activity: woke up.")
}
