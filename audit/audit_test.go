package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStreamCountsAndInclusion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T11:00:00Z", "surface": "cli", "type": "interaction", "direction": "inbound", "summary": "Discussed memory architecture", "distilled": true},
		{"timestamp": "2025-06-01T11:30:00Z", "surface": "imessage", "type": "interaction", "direction": "inbound", "summary": "Asked about weekend plans", "distilled": false},
		{"timestamp": "2025-06-01T10:00:00Z", "surface": "system", "type": "system", "direction": "internal", "summary": "", "distilled": true},
	}
	digest := "### Conversations\n- Discussed memory architecture\n"

	report := AuditStream(events, digest, Options{Now: now, WindowHours: 24, DigestHours: 24})

	assert.Equal(t, 3, report.Counts.TotalEvents)
	assert.Equal(t, 1, report.Counts.UndistilledTotal)
	assert.Equal(t, 1, report.Counts.BySurface["cli"])

	require.NotNil(t, report.DigestInclusion.Total.Rate)
	assert.InDelta(t, 0.5, *report.DigestInclusion.Total.Rate, 0.001)
	assert.Equal(t, 2, report.DigestInclusion.Total.Eligible)
	assert.Equal(t, 1, report.DigestInclusion.Total.Included)
}

func TestAuditStreamGapsReportsMissingSurfaces(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T11:00:00Z", "surface": "cli", "type": "interaction", "direction": "inbound", "summary": "hi"},
	}

	report := AuditStream(events, "", Options{Now: now, WindowHours: 24, DigestHours: 24})
	assert.Contains(t, report.Gaps.MissingSurfaces, "imessage")
	assert.NotContains(t, report.Gaps.MissingSurfaces, "cli")
	assert.True(t, report.Gaps.HandoffStale)
}

func TestAuditStreamGapsRespectsDisabledSurfaces(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T11:00:00Z", "surface": "cli", "type": "interaction", "direction": "inbound", "summary": "hi"},
	}

	report := AuditStream(events, "", Options{Now: now, WindowHours: 24, DigestHours: 24, DisabledSurfaces: map[string]bool{"imessage": true}})
	assert.NotContains(t, report.Gaps.MissingSurfaces, "imessage")
}

func TestAuditStreamHandoffNotStaleWithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []map[string]interface{}{
		{"timestamp": "2025-06-01T11:00:00Z", "surface": "cli", "type": "handoff", "direction": "internal", "summary": "handoff"},
	}

	report := AuditStream(events, "", Options{Now: now, WindowHours: 24, DigestHours: 24})
	assert.False(t, report.Gaps.HandoffStale)
	require.NotNil(t, report.Gaps.HandoffLastSeen)
	assert.Equal(t, "2025-06-01T11:00:00Z", *report.Gaps.HandoffLastSeen)
}

func TestWriteReportAtomicThenFormatText(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := AuditStream(nil, "", Options{Now: now, WindowHours: 24, DigestHours: 24})

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, WriteReportAtomic(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\"window_hours\": 24")

	text := FormatText(report)
	assert.Contains(t, text, "Stream audit (24h window)")
	assert.Contains(t, text, "Digest inclusion rate: n/a")
}
