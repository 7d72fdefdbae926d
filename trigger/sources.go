package trigger

import (
	"context"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// NoopCalendarSource reports no calendar activity. The in-process
// calendar cache reader (FileCalendarSource) handles the on-disk
// state this system actually maintains; live calendar fetching is a
// satellite concern outside this module's scope.
type NoopCalendarSource struct{}

func (NoopCalendarSource) CheckForTriggers(context.Context) ([]CalendarTriggerInput, error) {
	return nil, nil
}
func (NoopCalendarSource) UpcomingEvents(context.Context, float64) ([]UpcomingEvent, error) {
	return nil, nil
}
func (NoopCalendarSource) RecentlyEnded(context.Context, float64) ([]UpcomingEvent, error) {
	return nil, nil
}

// NoopLocationSource reports no location or battery signals.
type NoopLocationSource struct{}

func (NoopLocationSource) Triggers(context.Context) ([]LocationTriggerInput, error) { return nil, nil }
func (NoopLocationSource) BatteryTriggers(context.Context) ([]BatteryTriggerInput, error) {
	return nil, nil
}
func (NoopLocationSource) CurrentPlace(context.Context) (string, bool) { return "", false }

// NoopWeatherSource reports no weather-driven triggers.
type NoopWeatherSource struct{}

func (NoopWeatherSource) Triggers(context.Context) ([]Trigger, error) { return nil, nil }

// NoopPatternSource reports empty pattern analysis.
type NoopPatternSource struct{}

func (NoopPatternSource) Patterns(context.Context) (Patterns, error) { return Patterns{}, nil }

// NoopMemoryIndex reports no semantic matches; cross-temporal search
// requires an external vector index that this module does not embed.
type NoopMemoryIndex struct{}

func (NoopMemoryIndex) Search(context.Context, string, int) ([]SearchResult, error) {
	return nil, nil
}

// NoopQuestionSynthesizer never proposes a question; question content
// generation is a reasoning-layer concern outside this module.
type NoopQuestionSynthesizer struct{}

func (NoopQuestionSynthesizer) Synthesize(context.Context, QuestionContext) (*QuestionResult, error) {
	return nil, nil
}

// FilePatternSource reads patterns.json from disk on every call. No
// package in this module writes that file.
type FilePatternSource struct {
	Path string
}

func NewFilePatternSource(path string) *FilePatternSource {
	return &FilePatternSource{Path: path}
}

func (s *FilePatternSource) Patterns(context.Context) (Patterns, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Patterns{}, nil
		}
		return Patterns{}, err
	}
	var p Patterns
	if err := json.Unmarshal(raw, &p); err != nil {
		return Patterns{}, nil
	}
	return p, nil
}

// calendarCacheEntry mirrors one state/calendar-cache.json event.
type calendarCacheEntry struct {
	Start string `json:"start"`
	Title string `json:"title"`
	End   string `json:"end"`
}

// FileCalendarSource reads the calendar cache this system maintains
// on disk, rather than calling any live calendar API.
type FileCalendarSource struct {
	Path string
	now  func() time.Time
}

func NewFileCalendarSource(path string) *FileCalendarSource {
	return &FileCalendarSource{Path: path, now: func() time.Time { return time.Now() }}
}

func (s *FileCalendarSource) events() []calendarCacheEntry {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil
	}
	var doc struct {
		Events []calendarCacheEntry `json:"events"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc.Events
}

func (s *FileCalendarSource) UpcomingEvents(_ context.Context, hours float64) ([]UpcomingEvent, error) {
	now := s.now()
	var out []UpcomingEvent
	for _, ev := range s.events() {
		start, err := time.Parse(time.RFC3339, ev.Start)
		if err != nil {
			continue
		}
		minutesUntil := start.Sub(now).Minutes()
		if hours <= 0 {
			if minutesUntil <= 0 {
				if end, err := time.Parse(time.RFC3339, ev.End); err == nil && now.After(end) {
					continue
				}
				out = append(out, UpcomingEvent{Title: ev.Title, MinutesUntil: minutesUntil})
			}
			continue
		}
		if minutesUntil > 0 && minutesUntil <= hours*60 {
			out = append(out, UpcomingEvent{Title: ev.Title, MinutesUntil: minutesUntil})
		}
	}
	return out, nil
}

func (s *FileCalendarSource) RecentlyEnded(_ context.Context, hours float64) ([]UpcomingEvent, error) {
	now := s.now()
	var out []UpcomingEvent
	for _, ev := range s.events() {
		end, err := time.Parse(time.RFC3339, ev.End)
		if err != nil {
			continue
		}
		minutesSince := now.Sub(end).Minutes()
		if minutesSince > 0 && minutesSince <= hours*60 {
			out = append(out, UpcomingEvent{Title: ev.Title, MinutesUntil: -minutesSince})
		}
	}
	return out, nil
}

func (s *FileCalendarSource) CheckForTriggers(ctx context.Context) ([]CalendarTriggerInput, error) {
	var out []CalendarTriggerInput
	upcoming, _ := s.UpcomingEvents(ctx, 1)
	for _, ev := range upcoming {
		out = append(out, CalendarTriggerInput{
			Type:            "upcoming_event",
			Confidence:      upcomingConfidence(ev.MinutesUntil),
			SuggestedAction: "Upcoming event",
			Event:           ev.Title,
			MinutesUntil:    ev.MinutesUntil,
		})
	}
	ended, _ := s.RecentlyEnded(ctx, 0.5)
	for _, ev := range ended {
		out = append(out, CalendarTriggerInput{
			Type:            "recently_ended",
			Confidence:      0.4,
			SuggestedAction: "Recently ended event",
			Event:           ev.Title,
			MinutesUntil:    ev.MinutesUntil,
		})
	}
	return out, nil
}

func upcomingConfidence(minutesUntil float64) float64 {
	switch {
	case minutesUntil <= 15:
		return 0.6
	case minutesUntil <= 30:
		return 0.4
	default:
		return 0.2
	}
}
