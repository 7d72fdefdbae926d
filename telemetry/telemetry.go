// Package telemetry provides the atomic counters and gauges the
// status server exposes at /stats: today's event count, the last
// wake, and the last trigger evaluation.
package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing value, safe for concurrent use.
type Counter struct {
	value int64
}

func (c *Counter) Inc()         { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(n int64)  { atomic.AddInt64(&c.value, n) }
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.value) }

// Gauge is a value that can move up and down, stored as micros for
// float-like precision under an int64 atomic.
type Gauge struct {
	value int64
}

func (g *Gauge) Set(v float64)  { atomic.StoreInt64(&g.value, int64(v*1e6)) }
func (g *Gauge) Value() float64 { return float64(atomic.LoadInt64(&g.value)) / 1e6 }

// StringGauge holds the last-observed value of a string-valued
// signal (e.g. the last wake type), guarded by a mutex since strings
// aren't atomically swappable.
type StringGauge struct {
	mu    sync.RWMutex
	value string
}

func (s *StringGauge) Set(v string) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

func (s *StringGauge) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Registry collects the process-local signals the status server
// reports. It is not a Prometheus registry — there is no scrape
// endpoint in scope — just the plain counters/gauges /stats renders.
type Registry struct {
	EventsToday       Counter
	LastWakeType      StringGauge
	LastWakeUnix      Gauge
	LastTriggerLevel  StringGauge
	LastTriggerUnix   Gauge
	SenseIngested     Counter
	SenseQuarantined  Counter
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Snapshot is the point-in-time values rendered by /stats.
type Snapshot struct {
	EventsToday      int64   `json:"events_today"`
	LastWakeType     string  `json:"last_wake_type"`
	LastWakeUnix     float64 `json:"last_wake_unix"`
	LastTriggerLevel string  `json:"last_trigger_level"`
	LastTriggerUnix  float64 `json:"last_trigger_unix"`
	SenseIngested    int64   `json:"sense_ingested"`
	SenseQuarantined int64   `json:"sense_quarantined"`
}

// Snapshot reads every signal in one pass.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		EventsToday:      r.EventsToday.Value(),
		LastWakeType:     r.LastWakeType.Value(),
		LastWakeUnix:     r.LastWakeUnix.Value(),
		LastTriggerLevel: r.LastTriggerLevel.Value(),
		LastTriggerUnix:  r.LastTriggerUnix.Value(),
		SenseIngested:    r.SenseIngested.Value(),
		SenseQuarantined: r.SenseQuarantined.Value(),
	}
}
