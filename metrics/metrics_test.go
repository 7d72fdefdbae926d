package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func eventAt(t *testing.T, offset time.Duration, now time.Time) map[string]interface{} {
	t.Helper()
	return map[string]interface{}{
		"timestamp": now.Add(-offset).UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func TestFilterByHoursDropsOldEvents(t *testing.T) {
	now := time.Now().UTC()
	events := []map[string]interface{}{
		eventAt(t, 10*time.Minute, now),
		eventAt(t, 10*time.Hour, now),
	}
	filtered := FilterByHours(events, 1, now)
	assert.Len(t, filtered, 1)
}

func TestVelocityUsesFloor(t *testing.T) {
	v := Velocity(2.0, 0.1, 0.5)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestComputeDefaults(t *testing.T) {
	now := time.Now().UTC()
	events := []map[string]interface{}{
		eventAt(t, 5*time.Minute, now),
		eventAt(t, 1*time.Hour, now),
		eventAt(t, 11*time.Hour, now),
	}
	m := Compute(events, now, ComputeOptions{})
	assert.Equal(t, 0.5, m.ShortHours)
	assert.Equal(t, 1, m.ShortCount)
	assert.Equal(t, 2, m.MidCount)
	assert.Equal(t, 3, m.LongCount)
}
