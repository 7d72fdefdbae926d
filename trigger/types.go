// Package trigger implements the Trigger Evaluator: a multi-signal
// fusion layer that combines pattern, calendar, anomaly,
// cross-temporal-memory, location, weather, and generated-question
// triggers into a single engagement decision, gated by an ordered
// chain of safeguards and scored into escalation tiers.
package trigger

import "context"

// Trigger is one candidate signal for proactive engagement.
type Trigger struct {
	Type             string  `json:"type"`
	Subtype          string  `json:"subtype,omitempty"`
	Confidence       float64 `json:"confidence"`
	Reason           string  `json:"reason"`
	SuggestedMessage string  `json:"suggested_message,omitempty"`
}

// UpcomingEvent is a calendar entry relevant to a trigger decision.
type UpcomingEvent struct {
	Title        string
	MinutesUntil float64
}

// CalendarTriggerInput is what a CalendarSource contributes per event.
type CalendarTriggerInput struct {
	Type            string // e.g. "upcoming_event", "recently_ended"
	Confidence      float64
	SuggestedAction string
	Event           string
	MinutesUntil    float64
}

// CalendarSource abstracts the satellite calendar helper.
// FileCalendarSource implements it over the on-disk calendar cache;
// NoopCalendarSource is the default when nothing is wired in.
type CalendarSource interface {
	CheckForTriggers(ctx context.Context) ([]CalendarTriggerInput, error)
	UpcomingEvents(ctx context.Context, hours float64) ([]UpcomingEvent, error)
	RecentlyEnded(ctx context.Context, hours float64) ([]UpcomingEvent, error)
}

// LocationTriggerInput is what a LocationSource contributes.
type LocationTriggerInput struct {
	Type               string
	Confidence         float64
	Reason             string
	SuggestEngagement  bool
	SuppressEngagement bool
}

// BatteryTriggerInput is what a LocationSource contributes for battery state.
type BatteryTriggerInput struct {
	Type               string
	Confidence         float64
	Reason             string
	SuppressNonUrgent  bool
}

// LocationSource abstracts the satellite location helper.
type LocationSource interface {
	Triggers(ctx context.Context) ([]LocationTriggerInput, error)
	BatteryTriggers(ctx context.Context) ([]BatteryTriggerInput, error)
	CurrentPlace(ctx context.Context) (string, bool)
}

// WeatherSource abstracts the satellite weather helper.
type WeatherSource interface {
	Triggers(ctx context.Context) ([]Trigger, error)
}

// TemporalPattern is the temporal.* block of patterns.json.
type TemporalPattern struct {
	ActiveHours      []int   `json:"active_hours"`
	AvgMessagesPerDay float64 `json:"avg_messages_per_day"`
}

// Anomaly is one entry in patterns.anomalies.anomalies.
type Anomaly struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// RecurringTheme is one entry in patterns.topics.recurring_themes.
type RecurringTheme struct {
	Topic       string `json:"topic"`
	DaysPresent int    `json:"days_present"`
}

// Patterns is the decoded shape of state/patterns.json.
type Patterns struct {
	Temporal TemporalPattern `json:"temporal"`
	Anomalies struct {
		TodayStatus struct {
			Messages int `json:"messages"`
		} `json:"today_status"`
		Anomalies []Anomaly `json:"anomalies"`
	} `json:"anomalies"`
	Topics struct {
		RecurringThemes []RecurringTheme `json:"recurring_themes"`
	} `json:"topics"`
}

// PatternSource abstracts the cached pattern analysis read from
// patterns.json.
type PatternSource interface {
	Patterns(ctx context.Context) (Patterns, error)
}

// SearchResult is one hit from a MemoryIndex search.
type SearchResult struct {
	Text     string
	Date     string
	Distance float64
}

// MemoryIndex abstracts the external semantic-search backend (out of
// scope to implement; see spec non-goals).
type MemoryIndex interface {
	Search(ctx context.Context, query string, n int) ([]SearchResult, error)
}

// QuestionContext is the context handed to a QuestionSynthesizer.
type QuestionContext struct {
	Trigger      string
	Hour         int
	CurrentPlace string
	RecentEvent  string
}

// QuestionResult is a synthesized proactive question.
type QuestionResult struct {
	Category   string
	Confidence float64
	Question   string
}

// QuestionSynthesizer abstracts the question-generation subsystem
// (content generation is out of scope; only scaffolding lives here).
type QuestionSynthesizer interface {
	Synthesize(ctx context.Context, qc QuestionContext) (*QuestionResult, error)
}
