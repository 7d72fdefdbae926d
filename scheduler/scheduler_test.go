package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, now time.Time) *Scheduler {
	t.Helper()
	dir := t.TempDir()
	s := New(
		filepath.Join(dir, "scheduler-state.json"),
		filepath.Join(dir, "triggers.json"),
		filepath.Join(dir, "queue.json"),
		filepath.Join(dir, "calendar-cache.json"),
	)
	return s.WithClock(func() time.Time { return now })
}

func TestShouldWakeNowRespectsMinInterval(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	require.NoError(t, s.RecordWake("full"))

	decision := s.ShouldWakeNow()
	assert.False(t, decision.ShouldWake)
	assert.Equal(t, "none", decision.Type)
}

func TestShouldWakeNowScheduledHour(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 3, 0, 0, time.UTC)
	s := newTestScheduler(t, now)

	decision := s.ShouldWakeNow()
	assert.True(t, decision.ShouldWake)
	assert.Equal(t, "full", decision.Type)
}

func TestShouldWakeNowLowConfidenceOffHours(t *testing.T) {
	now := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)
	s := newTestScheduler(t, now)

	decision := s.ShouldWakeNow()
	assert.False(t, decision.ShouldWake)
	assert.Equal(t, "none", decision.Type)
}

func TestShouldWakeNowHighPriorityQueueBoostsConfidence(t *testing.T) {
	now := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)
	s := newTestScheduler(t, now)

	queue := `[{"priority": "high"}, {"priority": "high"}]`
	require.NoError(t, os.WriteFile(s.queuePath, []byte(queue), 0o644))
	triggers := `[{}, {}, {}]`
	require.NoError(t, os.WriteFile(s.triggersPath, []byte(triggers), 0o644))

	decision := s.ShouldWakeNow()
	assert.True(t, decision.ShouldWake)
}

func TestRecordWakeResetsDailyCount(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 9, 1, 0, 0, time.UTC)
	s := newTestScheduler(t, day1)
	require.NoError(t, s.RecordWake("full"))

	st := s.loadState()
	assert.Equal(t, 1, st.WakeCountToday)

	day2 := day1.AddDate(0, 0, 1)
	s2 := s.WithClock(func() time.Time { return day2 })
	status := s2.GetStatus()
	assert.Equal(t, 0, status.WakeCountToday)
}
