// Package summarize implements the abstract Summarizer interface: a
// deterministic fallback that groups events into narrative paragraphs
// by surface, plus an optional model-backed implementation that
// degrades to the fallback whenever the model is unreachable.
package summarize

import (
	"context"
	"strings"
)

// Summarizer collapses a run of events into a narrative string.
type Summarizer interface {
	Summarize(ctx context.Context, events []map[string]interface{}) (string, error)
}

var surfaceLabels = map[string]string{
	"imessage": "iMessage",
	"cli":      "CLI",
	"wake":     "Wake",
	"dream":    "Dream",
	"webhook":  "Webhook",
	"x":        "X",
	"bluesky":  "Bluesky",
	"email":    "Email",
	"calendar": "Calendar",
	"location": "Location",
	"sense":    "Sense",
	"system":   "System",
}

func surfaceLabel(surface string) string {
	if label, ok := surfaceLabels[surface]; ok {
		return label
	}
	if surface == "" {
		return "Unknown"
	}
	return strings.ToUpper(surface[:1]) + surface[1:]
}

// cleanText normalizes whitespace and trims a single trailing period.
func cleanText(text string) string {
	cleaned := strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
	return strings.TrimSuffix(cleaned, ".")
}

func eventSummary(e map[string]interface{}) string {
	if summary, ok := e["summary"].(string); ok && strings.TrimSpace(summary) != "" {
		return cleanText(summary)
	}
	if content, ok := e["content"].(string); ok && strings.TrimSpace(content) != "" {
		return cleanText(content)
	}
	return ""
}

func sortKey(e map[string]interface{}) (string, string) {
	ts, _ := e["timestamp"].(string)
	id, _ := e["id"].(string)
	return ts, id
}

func sortEvents(events []map[string]interface{}) []map[string]interface{} {
	sorted := append([]map[string]interface{}{}, events...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			tsJ, idJ := sortKey(sorted[j])
			tsJm1, idJm1 := sortKey(sorted[j-1])
			if tsJ < tsJm1 || (tsJ == tsJm1 && idJ < idJm1) {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			} else {
				break
			}
		}
	}
	return sorted
}

// FallbackSummarizer builds a narrative by grouping events by surface
// in first-appearance order, capping each group to MaxPerSurface
// summaries (default 3).
type FallbackSummarizer struct {
	MaxPerSurface int
}

// NewFallback returns a FallbackSummarizer with the default cap.
func NewFallback() *FallbackSummarizer {
	return &FallbackSummarizer{MaxPerSurface: 3}
}

// Summarize never fails: it is the safety net every other Summarizer
// degrades to.
func (f *FallbackSummarizer) Summarize(_ context.Context, events []map[string]interface{}) (string, error) {
	return BuildNarrative(events, f.capOrDefault()), nil
}

func (f *FallbackSummarizer) capOrDefault() int {
	if f.MaxPerSurface > 0 {
		return f.MaxPerSurface
	}
	return 3
}

// BuildNarrative is the pure function behind FallbackSummarizer,
// exposed directly for callers that want the deterministic narrative
// without going through the interface.
func BuildNarrative(events []map[string]interface{}, maxPerSurface int) string {
	if len(events) == 0 {
		return ""
	}
	if maxPerSurface <= 0 {
		maxPerSurface = 3
	}

	ordered := sortEvents(events)

	var surfaceOrder []string
	grouped := map[string][]string{}

	for _, e := range ordered {
		surface, _ := e["surface"].(string)
		surface = strings.ToLower(strings.TrimSpace(surface))
		if surface == "" {
			surface = "unknown"
		}
		summary := eventSummary(e)
		if summary == "" {
			continue
		}

		if _, seen := grouped[surface]; !seen {
			surfaceOrder = append(surfaceOrder, surface)
		}
		if len(grouped[surface]) < maxPerSurface {
			grouped[surface] = append(grouped[surface], summary)
		}
	}

	var paragraphs []string
	for _, surface := range surfaceOrder {
		summaries := grouped[surface]
		if len(summaries) == 0 {
			continue
		}
		label := surfaceLabel(surface)
		paragraphs = append(paragraphs, label+" activity: "+strings.Join(summaries, "; ")+".")
	}

	return strings.Join(paragraphs, "\n\n")
}
