// Package scheduler implements the Adaptive Wake Scheduler: a
// confidence-scored policy deciding whether to trigger a full or
// light reasoning cycle, bounded by a base hourly schedule, a minimum
// wake interval, and queue/calendar/trigger signals read from disk.
package scheduler

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// BaseWakeHours are the local hours at which a full wake is always
// scheduled, absent an override.
var BaseWakeHours = []int{9, 14, 20}

const (
	// MinWakeInterval is the minimum time between wakes.
	MinWakeInterval = 60 * time.Minute
	// EarlyWakeThreshold is the confidence level that promotes an
	// early wake to "full" rather than "light".
	EarlyWakeThreshold = 0.7
	// LightWakeThreshold is the confidence floor for a "light" wake.
	LightWakeThreshold = 0.4
	// BaseHourWindow is how close to a base hour counts as "scheduled".
	BaseHourWindow = 15 * time.Minute
)

// State is the persisted scheduler state.
type State struct {
	LastWake       string `json:"last_wake"`
	LastWakeType   string `json:"last_wake_type"`
	WakeCountToday int    `json:"wake_count_today"`
	Date           string `json:"date"`
}

// queueItem mirrors the shape of state/proactive-queue/queue.json entries.
type queueItem struct {
	SentAt   string `json:"sentAt"`
	Priority string `json:"priority"`
}

// calendarEvent mirrors state/calendar-cache.json entries.
type calendarEvent struct {
	Start string `json:"start"`
	Title string `json:"title"`
}

// Scheduler evaluates and records wake decisions.
type Scheduler struct {
	statePath    string
	triggersPath string
	queuePath    string
	calendarPath string
	now          func() time.Time
}

// New builds a Scheduler rooted at the given state directory paths.
func New(statePath, triggersPath, queuePath, calendarPath string) *Scheduler {
	return &Scheduler{
		statePath:    statePath,
		triggersPath: triggersPath,
		queuePath:    queuePath,
		calendarPath: calendarPath,
		now:          func() time.Time { return time.Now() },
	}
}

// WithClock overrides the scheduler's notion of "now", for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) loadState() State {
	raw, err := os.ReadFile(s.statePath)
	if err != nil {
		return State{Date: s.now().Format("2006-01-02")}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{Date: s.now().Format("2006-01-02")}
	}
	return st
}

func (s *Scheduler) saveState(st State) error {
	dir := filepath.Dir(s.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "scheduler-state-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.statePath)
}

func (s *Scheduler) resetDailyCounts(st State) State {
	today := s.now().Format("2006-01-02")
	if st.Date != today {
		st.Date = today
		st.WakeCountToday = 0
	}
	return st
}

func (s *Scheduler) pendingTriggerCount() int {
	raw, err := os.ReadFile(s.triggersPath)
	if err != nil {
		return 0
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return 0
	}
	return len(list)
}

// QueueStatus summarizes unsent proactive-queue entries.
type QueueStatus struct {
	Pending      int `json:"pending"`
	HighPriority int `json:"high_priority"`
}

func (s *Scheduler) queueStatus() QueueStatus {
	raw, err := os.ReadFile(s.queuePath)
	if err != nil {
		return QueueStatus{}
	}
	var items []queueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return QueueStatus{}
	}

	status := QueueStatus{}
	for _, item := range items {
		if item.SentAt != "" {
			continue
		}
		status.Pending++
		if item.Priority == "high" || item.Priority == "time_sensitive" {
			status.HighPriority++
		}
	}
	return status
}

func (s *Scheduler) upcomingCalendarEvents() []calendarEvent {
	raw, err := os.ReadFile(s.calendarPath)
	if err != nil {
		return nil
	}
	var doc struct {
		Events []calendarEvent `json:"events"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	now := s.now()
	var upcoming []calendarEvent
	for _, ev := range doc.Events {
		start, err := time.Parse(time.RFC3339, ev.Start)
		if err != nil {
			continue
		}
		if start.After(now) && start.Before(now.Add(2*time.Hour)) {
			upcoming = append(upcoming, ev)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Start < upcoming[j].Start })
	return upcoming
}

func (s *Scheduler) minutesSinceLastWake(st State) (float64, bool) {
	if st.LastWake == "" {
		return 0, false
	}
	last, err := time.Parse(time.RFC3339, st.LastWake)
	if err != nil {
		return 0, false
	}
	return s.now().Sub(last).Minutes(), true
}

func (s *Scheduler) nextBaseWake() time.Time {
	now := s.now()
	for _, hour := range BaseWakeHours {
		wake := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		if wake.After(now) {
			return wake
		}
	}
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), BaseWakeHours[0], 0, 0, 0, now.Location())
}

// calculateConfidence implements the additive confidence formula,
// clamped to [0, 1], with a human-readable reason string.
func (s *Scheduler) calculateConfidence(st State) (float64, string) {
	var reasons []string
	confidence := 0.0

	queue := s.queueStatus()
	if queue.HighPriority > 0 {
		confidence += 0.4
		reasons = append(reasons, fmt.Sprintf("%d high-priority messages", queue.HighPriority))
	}

	events := s.upcomingCalendarEvents()
	if len(events) > 0 {
		start, err := time.Parse(time.RFC3339, events[0].Start)
		if err == nil {
			minutesUntil := start.Sub(s.now()).Minutes()
			switch {
			case minutesUntil < 30:
				confidence += 0.5
				reasons = append(reasons, fmt.Sprintf("Event in %d minutes", int(minutesUntil)))
			case minutesUntil < 60:
				confidence += 0.3
				reasons = append(reasons, fmt.Sprintf("Event in %d minutes", int(minutesUntil)))
			}
		}
	}

	if minutes, ok := s.minutesSinceLastWake(st); ok && minutes > 180 {
		confidence += 0.2
		reasons = append(reasons, fmt.Sprintf("Last wake %d minutes ago", int(minutes)))
	}

	if triggerCount := s.pendingTriggerCount(); triggerCount >= 3 {
		confidence += 0.3
		reasons = append(reasons, fmt.Sprintf("%d pending triggers", triggerCount))
	}

	reason := "No urgent items"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return math.Min(confidence, 1.0), reason
}

// Decision is the outcome of ShouldWakeNow.
type Decision struct {
	ShouldWake bool
	Type       string // "full", "light", or "none"
	Reason     string
}

// ShouldWakeNow decides whether to wake now, applying the minimum
// interval guard, the scheduled-hour window, then confidence bands.
func (s *Scheduler) ShouldWakeNow() Decision {
	st := s.resetDailyCounts(s.loadState())

	if minutes, ok := s.minutesSinceLastWake(st); ok && minutes < MinWakeInterval.Minutes() {
		return Decision{false, "none", fmt.Sprintf("Too soon since last wake (%d min ago)", int(minutes))}
	}

	now := s.now()
	for _, hour := range BaseWakeHours {
		wake := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		diff := now.Sub(wake)
		if diff < 0 {
			diff = -diff
		}
		if diff < BaseHourWindow {
			return Decision{true, "full", fmt.Sprintf("Scheduled %d:00 wake", hour)}
		}
	}

	confidence, reason := s.calculateConfidence(st)
	switch {
	case confidence >= EarlyWakeThreshold:
		return Decision{true, "full", fmt.Sprintf("High confidence (%.0f%%): %s", confidence*100, reason)}
	case confidence >= LightWakeThreshold:
		return Decision{true, "light", fmt.Sprintf("Moderate confidence (%.0f%%): %s", confidence*100, reason)}
	default:
		return Decision{false, "none", fmt.Sprintf("Low confidence (%.0f%%): %s", confidence*100, reason)}
	}
}

// NextWake describes the upcoming scheduled wake.
type NextWake struct {
	NextScheduled    time.Time `json:"next_scheduled"`
	MinutesUntil     int       `json:"minutes_until"`
	CurrentConfidence float64  `json:"current_confidence"`
	ConfidenceReason string    `json:"confidence_reason"`
	MayWakeEarly     bool      `json:"may_wake_early"`
}

// GetNextWake reports the next base-schedule wake and current
// confidence, for the "next" CLI subcommand.
func (s *Scheduler) GetNextWake() NextWake {
	st := s.resetDailyCounts(s.loadState())
	nextBase := s.nextBaseWake()
	confidence, reason := s.calculateConfidence(st)

	return NextWake{
		NextScheduled:     nextBase,
		MinutesUntil:      int(nextBase.Sub(s.now()).Minutes()),
		CurrentConfidence: confidence,
		ConfidenceReason:  reason,
		MayWakeEarly:      confidence >= LightWakeThreshold,
	}
}

// RecordWake persists that a wake of the given type occurred now.
func (s *Scheduler) RecordWake(wakeType string) error {
	st := s.resetDailyCounts(s.loadState())
	st.LastWake = s.now().Format(time.RFC3339)
	st.LastWakeType = wakeType
	st.WakeCountToday++
	return s.saveState(st)
}

// Status is the full scheduler status for the "status" CLI subcommand.
type Status struct {
	ShouldWake        bool        `json:"should_wake"`
	WakeType          string      `json:"wake_type"`
	Reason            string      `json:"reason"`
	LastWake          string      `json:"last_wake"`
	LastWakeType      string      `json:"last_wake_type"`
	WakeCountToday    int         `json:"wake_count_today"`
	NextScheduled     time.Time   `json:"next_scheduled"`
	MinutesUntilNext  int         `json:"minutes_until_next"`
	QueueStatus       QueueStatus `json:"queue_status"`
	UpcomingEvents    int         `json:"upcoming_events"`
}

// GetStatus assembles the full scheduler status snapshot.
func (s *Scheduler) GetStatus() Status {
	st := s.resetDailyCounts(s.loadState())
	decision := s.ShouldWakeNow()
	next := s.GetNextWake()

	return Status{
		ShouldWake:       decision.ShouldWake,
		WakeType:         decision.Type,
		Reason:           decision.Reason,
		LastWake:         st.LastWake,
		LastWakeType:     st.LastWakeType,
		WakeCountToday:   st.WakeCountToday,
		NextScheduled:    next.NextScheduled,
		MinutesUntilNext: next.MinutesUntil,
		QueueStatus:      s.queueStatus(),
		UpcomingEvents:   len(s.upcomingCalendarEvents()),
	}
}
