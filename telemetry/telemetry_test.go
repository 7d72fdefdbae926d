package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterIncAndAdd(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())
}

func TestGaugeSet(t *testing.T) {
	var g Gauge
	g.Set(3.5)
	assert.InDelta(t, 3.5, g.Value(), 0.0001)
}

func TestStringGaugeSet(t *testing.T) {
	var s StringGauge
	assert.Equal(t, "", s.Value())
	s.Set("full")
	assert.Equal(t, "full", s.Value())
}

func TestRegistrySnapshot(t *testing.T) {
	r := New()
	r.EventsToday.Add(3)
	r.LastWakeType.Set("light")
	r.LastWakeUnix.Set(1717000000)

	snap := r.Snapshot()
	assert.Equal(t, int64(3), snap.EventsToday)
	assert.Equal(t, "light", snap.LastWakeType)
	assert.InDelta(t, 1717000000, snap.LastWakeUnix, 0.01)
}
