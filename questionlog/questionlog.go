// Package questionlog tracks proactively-asked questions to avoid
// re-asking the same thing: a stem-based Jaccard-similarity dedup
// over an append-only log, with a rewrite-on-response path for
// marking answers received.
package questionlog

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// CooldownDays is how far back a similar question suppresses a new
// one from being asked again.
const CooldownDays = 7

// SimilarityThreshold is the Jaccard word-overlap ratio at or above which
// two stems count as the same question.
const SimilarityThreshold = 0.5

// StemWords is how many leading meaningful words a stem keeps.
const StemWords = 6

var punctuation = regexp.MustCompile(`[^\w\s]`)

var stopwords = map[string]bool{
	"i": true, "you": true, "the": true, "a": true, "an": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "to": true, "of": true, "in": true,
	"for": true, "on": true, "with": true, "at": true, "by": true,
	"about": true, "that": true, "this": true, "it": true, "what": true,
	"how": true, "your": true, "there": true,
}

// ExtractStem reduces a question to its first few meaningful,
// lowercased, de-punctuated, stopword-free words for deduplication.
func ExtractStem(question string) string {
	stem := strings.ToLower(question)
	stem = punctuation.ReplaceAllString(stem, "")

	var words []string
	for _, w := range strings.Fields(stem) {
		if stopwords[w] {
			continue
		}
		words = append(words, w)
		if len(words) >= StemWords {
			break
		}
	}
	return strings.Join(words, " ")
}

// stemsSimilar reports whether two stems overlap enough in their word
// sets (Jaccard index) to be treated as duplicates.
func stemsSimilar(a, b string, threshold float64) bool {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return false
	}
	return float64(intersection)/float64(union) >= threshold
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// Entry is one record in the asked-questions log.
type Entry struct {
	Timestamp          string                 `json:"timestamp"`
	Question           string                 `json:"question"`
	QuestionStem       string                 `json:"question_stem"`
	Category           string                 `json:"category"`
	Trigger            string                 `json:"trigger"`
	Context            map[string]interface{} `json:"context,omitempty"`
	ResponseReceived   bool                   `json:"response_received"`
	ResponseSummary    string                 `json:"response_summary,omitempty"`
	ResponseTimestamp  string                 `json:"response_timestamp,omitempty"`
}

// Log manages the asked_questions.jsonl file.
type Log struct {
	path string
	now  func() time.Time
}

// New builds a Log backed by the given file path.
func New(path string) *Log {
	return &Log{path: path, now: func() time.Time { return time.Now() }}
}

// WithClock overrides the log's notion of "now", for tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

func (l *Log) readAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WasRecentlyAsked reports whether a similar question was asked
// within CooldownDays.
func (l *Log) WasRecentlyAsked(stem string) bool {
	entries, err := l.readAll()
	if err != nil {
		return false
	}
	cutoff := l.now().AddDate(0, 0, -CooldownDays)

	for _, e := range entries {
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		if stemsSimilar(stem, e.QuestionStem, SimilarityThreshold) {
			return true
		}
	}
	return false
}

// CountAskedOn counts questions logged on the given YYYY-MM-DD date.
func (l *Log) CountAskedOn(date string) int {
	entries, err := l.readAll()
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Timestamp, date) {
			count++
		}
	}
	return count
}

// LogAsked appends a new asked-question entry.
func (l *Log) LogAsked(question, category, trigger string, context map[string]interface{}) error {
	entry := Entry{
		Timestamp:    l.now().Format(time.RFC3339),
		Question:     question,
		QuestionStem: ExtractStem(question),
		Category:     category,
		Trigger:      trigger,
		Context:      context,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// MarkResponseReceived finds the most recent unanswered entry whose
// stem matches and records the response, rewriting the whole log.
func (l *Log) MarkResponseReceived(stem, summary string) error {
	entries, err := l.readAll()
	if err != nil {
		return err
	}
	if entries == nil {
		return nil
	}

	for i := len(entries) - 1; i >= 0; i-- {
		if !stemsSimilar(stem, entries[i].QuestionStem, SimilarityThreshold) {
			continue
		}
		if entries[i].ResponseReceived {
			continue
		}
		entries[i].ResponseReceived = true
		entries[i].ResponseSummary = summary
		entries[i].ResponseTimestamp = l.now().Format(time.RFC3339)
		break
	}

	return l.writeAll(entries)
}

func (l *Log) writeAll(entries []Entry) error {
	var b strings.Builder
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		b.Write(raw)
		b.WriteString("\n")
	}
	return os.WriteFile(l.path, []byte(b.String()), 0o644)
}
