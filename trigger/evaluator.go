package trigger

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// ConfidenceThreshold is the fused confidence at or above which
// escalation reaches "engage".
const ConfidenceThreshold = 0.8

// Escalation levels. Suppressed and blocked come from short-circuits
// before any trigger is scored; log through engage are the confidence
// bands, in ascending order.
const (
	EscalationSuppressed = "suppressed"
	EscalationBlocked    = "blocked"
	EscalationLog        = "log"
	EscalationDream      = "dream"
	EscalationWake       = "wake"
	EscalationEngage     = "engage"
)

// Evaluation is the full result of one evaluator pass.
type Evaluation struct {
	Timestamp        string    `json:"timestamp"`
	Blocked          bool      `json:"blocked"`
	BlockReason      string    `json:"block_reason,omitempty"`
	LowBattery       bool      `json:"low_battery,omitempty"`
	Triggers         []Trigger `json:"triggers"`
	FusedTrigger     *Trigger  `json:"fused_trigger,omitempty"`
	EscalationLevel  string    `json:"escalation_level"`
}

// Evaluator fuses trigger sources into an engagement decision,
// gated by the safeguard chain.
type Evaluator struct {
	lastTriggerPath string
	episodesDir     string
	evalLogPath     string

	calendar  CalendarSource
	location  LocationSource
	weather   WeatherSource
	patterns  PatternSource
	memory    MemoryIndex
	questions QuestionSynthesizer

	now func() time.Time
}

// Option configures optional source wiring on an Evaluator.
type Option func(*Evaluator)

func WithCalendar(c CalendarSource) Option   { return func(e *Evaluator) { e.calendar = c } }
func WithLocation(l LocationSource) Option   { return func(e *Evaluator) { e.location = l } }
func WithWeather(w WeatherSource) Option     { return func(e *Evaluator) { e.weather = w } }
func WithPatterns(p PatternSource) Option    { return func(e *Evaluator) { e.patterns = p } }
func WithMemory(m MemoryIndex) Option        { return func(e *Evaluator) { e.memory = m } }
func WithQuestions(q QuestionSynthesizer) Option {
	return func(e *Evaluator) { e.questions = q }
}

// New builds an Evaluator rooted at the given state directory paths.
// Unset sources default to no-ops; WithPatterns/WithCalendar etc. can
// override them, or NewFileCalendarSource/NewFilePatternSource can be
// passed in for the file-cache-backed defaults.
func New(lastTriggerPath, episodesDir, evalLogPath string, opts ...Option) *Evaluator {
	e := &Evaluator{
		lastTriggerPath: lastTriggerPath,
		episodesDir:     episodesDir,
		evalLogPath:     evalLogPath,
		calendar:        NoopCalendarSource{},
		location:        NoopLocationSource{},
		weather:         NoopWeatherSource{},
		patterns:        NoopPatternSource{},
		memory:          NoopMemoryIndex{},
		questions:       NoopQuestionSynthesizer{},
		now:             func() time.Time { return time.Now() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithClock overrides the evaluator's notion of "now", for tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// fuse picks the single highest-confidence trigger, breaking ties by
// the stable order the triggers were gathered in.
func fuse(triggers []Trigger) *Trigger {
	if len(triggers) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(triggers); i++ {
		if triggers[i].Confidence > triggers[best].Confidence {
			best = i
		}
	}
	t := triggers[best]
	return &t
}

func escalationFor(confidence float64) string {
	switch {
	case confidence >= ConfidenceThreshold:
		return EscalationEngage
	case confidence >= 0.6:
		return EscalationWake
	case confidence >= 0.3:
		return EscalationDream
	default:
		return EscalationLog
	}
}

// Evaluate runs the safeguard chain, gathers all trigger sources,
// fuses them, and scores the escalation level.
func (e *Evaluator) Evaluate(ctx context.Context, todaySnippet string) Evaluation {
	now := e.now()
	today := now.Format("2006-01-02")

	eval := Evaluation{Timestamp: now.Format(time.RFC3339)}

	locTriggers, suppressed := e.locationTriggers(ctx)
	if suppressed {
		eval.EscalationLevel = EscalationSuppressed
		e.logEvaluation(eval)
		return eval
	}

	blocked, reason, lowBattery := e.checkSafeguards(ctx, now)
	eval.LowBattery = lowBattery
	if blocked {
		eval.Blocked = true
		eval.BlockReason = reason
		eval.EscalationLevel = EscalationBlocked
		e.logEvaluation(eval)
		return eval
	}

	var triggers []Trigger
	triggers = append(triggers, e.patternTriggers(ctx, now.Hour())...)
	triggers = append(triggers, e.calendarTriggers(ctx)...)
	triggers = append(triggers, e.anomalyTriggers(ctx)...)
	triggers = append(triggers, e.crossTemporalTriggers(ctx, todaySnippet, today)...)
	triggers = append(triggers, locTriggers...)
	triggers = append(triggers, e.weatherTriggers(ctx)...)

	currentPlace, _ := currentPlaceOf(ctx, e.location)
	qc := QuestionContext{Hour: now.Hour(), CurrentPlace: currentPlace}
	if fused := fuse(triggers); fused != nil {
		qc.Trigger = fused.Type
	}
	triggers = append(triggers, e.questionTriggers(ctx, qc)...)

	eval.Triggers = triggers
	eval.FusedTrigger = fuse(triggers)
	if eval.FusedTrigger != nil {
		eval.EscalationLevel = escalationFor(eval.FusedTrigger.Confidence)
	} else {
		eval.EscalationLevel = EscalationLog
	}

	e.logEvaluation(eval)
	return eval
}

func currentPlaceOf(ctx context.Context, loc LocationSource) (string, bool) {
	if loc == nil {
		return "", false
	}
	return loc.CurrentPlace(ctx)
}

// RecordEngagement persists that a proactive engagement happened now,
// resetting the cooldown safeguard.
func (e *Evaluator) RecordEngagement() error {
	dir := filepath.Dir(e.lastTriggerPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	content := []byte(strconv.FormatInt(e.now().Unix(), 10))
	return os.WriteFile(e.lastTriggerPath, content, 0o644)
}

// GetEscalationSummary reports a rollup of the last n logged
// evaluations, for the "summary" CLI subcommand.
func (e *Evaluator) GetEscalationSummary(n int) (EscalationSummary, error) {
	entries, err := readEvaluationLog(e.evalLogPath)
	if err != nil {
		return EscalationSummary{}, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	summary := EscalationSummary{Counts: map[string]int{}}
	for _, ev := range entries {
		summary.Counts[ev.EscalationLevel]++
		summary.Total++
	}
	return summary, nil
}

// EscalationSummary rolls up recent evaluation outcomes.
type EscalationSummary struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}
