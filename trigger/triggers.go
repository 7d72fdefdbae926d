package trigger

import (
	"context"
	"fmt"
)

// patternTriggers inspects cached pattern analysis for two signals:
// an unusually quiet day during normally-active hours, and a
// recurring theme present for five or more days.
func (e *Evaluator) patternTriggers(ctx context.Context, hour int) []Trigger {
	if e.patterns == nil {
		return nil
	}
	p, err := e.patterns.Patterns(ctx)
	if err != nil {
		return nil
	}

	var out []Trigger

	activeNow := false
	for _, h := range p.Temporal.ActiveHours {
		if h == hour {
			activeNow = true
			break
		}
	}
	if activeNow && p.Temporal.AvgMessagesPerDay > 0 {
		threshold := p.Temporal.AvgMessagesPerDay * 0.3
		if float64(p.Anomalies.TodayStatus.Messages) < threshold {
			out = append(out, Trigger{
				Type:       "pattern",
				Subtype:    "quiet_day",
				Confidence: 0.4,
				Reason:     "Unusually quiet during normally active hours",
			})
		}
	}

	if len(p.Topics.RecurringThemes) > 0 {
		top := p.Topics.RecurringThemes[0]
		if top.DaysPresent >= 5 {
			out = append(out, Trigger{
				Type:       "pattern",
				Subtype:    "recurring_theme",
				Confidence: 0.3,
				Reason:     fmt.Sprintf("%q has recurred for %d days", top.Topic, top.DaysPresent),
			})
		}
	}

	return out
}

// calendarTriggers forwards the calendar satellite's own assessment
// of upcoming/recently-ended events.
func (e *Evaluator) calendarTriggers(ctx context.Context) []Trigger {
	if e.calendar == nil {
		return nil
	}
	inputs, err := e.calendar.CheckForTriggers(ctx)
	if err != nil {
		return nil
	}
	out := make([]Trigger, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Trigger{
			Type:             "calendar",
			Subtype:          in.Type,
			Confidence:       in.Confidence,
			Reason:           in.SuggestedAction,
			SuggestedMessage: e.generateCalendarMessage(in),
		})
	}
	return out
}

func (e *Evaluator) generateCalendarMessage(in CalendarTriggerInput) string {
	switch in.Type {
	case "upcoming_event":
		return fmt.Sprintf("Heads up, %q starts in about %d minutes.", in.Event, int(in.MinutesUntil))
	case "recently_ended":
		return fmt.Sprintf("How did %q go?", in.Event)
	default:
		return ""
	}
}

// anomalyTriggers maps severity-graded pattern anomalies to
// confidence levels.
func (e *Evaluator) anomalyTriggers(ctx context.Context) []Trigger {
	if e.patterns == nil {
		return nil
	}
	p, err := e.patterns.Patterns(ctx)
	if err != nil {
		return nil
	}

	out := make([]Trigger, 0, len(p.Anomalies.Anomalies))
	for _, a := range p.Anomalies.Anomalies {
		var confidence float64
		switch a.Severity {
		case "high":
			confidence = 0.7
		case "medium":
			confidence = 0.5
		case "low":
			confidence = 0.3
		default:
			continue
		}
		out = append(out, Trigger{
			Type:       "anomaly",
			Subtype:    a.Severity,
			Confidence: confidence,
			Reason:     a.Description,
		})
	}
	return out
}

// crossTemporalTriggers searches the semantic memory index for past
// entries resembling today's activity, surfacing close, non-today
// matches.
func (e *Evaluator) crossTemporalTriggers(ctx context.Context, todaySnippet, today string) []Trigger {
	if e.memory == nil || todaySnippet == "" {
		return nil
	}
	results, err := e.memory.Search(ctx, todaySnippet, 5)
	if err != nil {
		return nil
	}
	var out []Trigger
	for _, r := range results {
		if r.Date == today || r.Distance >= 0.3 {
			continue
		}
		out = append(out, Trigger{
			Type:       "cross_temporal",
			Confidence: 0.5,
			Reason:     fmt.Sprintf("Similar to an entry from %s", r.Date),
		})
	}
	return out
}

// locationTriggers forwards the location satellite's assessment; a
// suppress_engagement flag is handled by the caller (it forces the
// suppressed escalation level rather than contributing a trigger).
func (e *Evaluator) locationTriggers(ctx context.Context) ([]Trigger, bool) {
	if e.location == nil {
		return nil, false
	}
	inputs, err := e.location.Triggers(ctx)
	if err != nil {
		return nil, false
	}
	var out []Trigger
	suppressed := false
	for _, in := range inputs {
		if in.SuppressEngagement {
			suppressed = true
			continue
		}
		if !in.SuggestEngagement {
			continue
		}
		out = append(out, Trigger{
			Type:       "location",
			Subtype:    in.Type,
			Confidence: in.Confidence,
			Reason:     in.Reason,
		})
	}
	return out, suppressed
}

// weatherTriggers forwards the weather satellite's triggers verbatim.
func (e *Evaluator) weatherTriggers(ctx context.Context) []Trigger {
	if e.weather == nil {
		return nil
	}
	out, err := e.weather.Triggers(ctx)
	if err != nil {
		return nil
	}
	for i := range out {
		out[i].Type = "weather"
	}
	return out
}

// questionTriggers synthesizes a proactive question from the current
// context, surfacing it only above the confidence threshold.
func (e *Evaluator) questionTriggers(ctx context.Context, qc QuestionContext) []Trigger {
	if e.questions == nil {
		return nil
	}
	result, err := e.questions.Synthesize(ctx, qc)
	if err != nil || result == nil {
		return nil
	}
	const questionConfidenceThreshold = 0.6
	if result.Confidence < questionConfidenceThreshold {
		return nil
	}
	return []Trigger{{
		Type:             "question",
		Subtype:          result.Category,
		Confidence:       result.Confidence,
		Reason:           "Synthesized question",
		SuggestedMessage: result.Question,
	}}
}
