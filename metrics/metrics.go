// Package metrics computes rate and velocity statistics over trailing
// windows of stream events, feeding the Hot Digest Builder's adaptive
// window selection.
package metrics

import (
	"time"

	"github.com/samara-dev/mindstream/event"
)

// FilterByHours returns the events whose timestamp falls within the
// last `hours` of now. Events with unparsable timestamps are dropped.
func FilterByHours(events []map[string]interface{}, hours float64, now time.Time) []map[string]interface{} {
	cutoff := now.Add(-time.Duration(hours * float64(time.Hour)))
	var out []map[string]interface{}
	for _, e := range events {
		ts, _ := e["timestamp"].(string)
		t, err := event.ParseTimestamp(ts)
		if err != nil {
			continue
		}
		if !t.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// CountInWindow counts events within the last `hours` of now.
func CountInWindow(events []map[string]interface{}, hours float64, now time.Time) int {
	return len(FilterByHours(events, hours, now))
}

// RatePerHour is the event count normalized to an hourly rate.
func RatePerHour(count int, hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return float64(count) / hours
}

// Velocity is the ratio of a short-window rate to a floored
// long-window rate — how much faster the stream is moving right now
// compared to its baseline.
func Velocity(shortRate, longRate, floor float64) float64 {
	denom := longRate
	if denom < floor {
		denom = floor
	}
	return shortRate / denom
}

// EventMetrics summarizes event counts, rates, and velocity across
// three trailing windows.
type EventMetrics struct {
	ShortHours  float64 `json:"short_hours"`
	MidHours    float64 `json:"mid_hours"`
	LongHours   float64 `json:"long_hours"`
	ShortCount  int     `json:"short_count"`
	MidCount    int     `json:"mid_count"`
	LongCount   int     `json:"long_count"`
	ShortRate   float64 `json:"short_rate"`
	MidRate     float64 `json:"mid_rate"`
	LongRate    float64 `json:"long_rate"`
	Velocity    float64 `json:"velocity"`
}

// ComputeOptions tunes the trailing windows used by Compute. Zero
// values fall back to the original defaults (30m / 2h / 12h, rate
// floor 0.5).
type ComputeOptions struct {
	ShortHours float64
	MidHours   float64
	LongHours  float64
	RateFloor  float64
}

func (o ComputeOptions) withDefaults() ComputeOptions {
	if o.ShortHours <= 0 {
		o.ShortHours = 0.5
	}
	if o.MidHours <= 0 {
		o.MidHours = 2
	}
	if o.LongHours <= 0 {
		o.LongHours = 12
	}
	if o.RateFloor <= 0 {
		o.RateFloor = 0.5
	}
	return o
}

// Compute derives EventMetrics for a set of events as of now.
func Compute(events []map[string]interface{}, now time.Time, opts ComputeOptions) EventMetrics {
	opts = opts.withDefaults()

	shortCount := CountInWindow(events, opts.ShortHours, now)
	midCount := CountInWindow(events, opts.MidHours, now)
	longCount := CountInWindow(events, opts.LongHours, now)

	shortRate := RatePerHour(shortCount, opts.ShortHours)
	midRate := RatePerHour(midCount, opts.MidHours)
	longRate := RatePerHour(longCount, opts.LongHours)

	return EventMetrics{
		ShortHours: opts.ShortHours,
		MidHours:   opts.MidHours,
		LongHours:  opts.LongHours,
		ShortCount: shortCount,
		MidCount:   midCount,
		LongCount:  longCount,
		ShortRate:  shortRate,
		MidRate:    midRate,
		LongRate:   longRate,
		Velocity:   Velocity(shortRate, longRate, opts.RateFloor),
	}
}
