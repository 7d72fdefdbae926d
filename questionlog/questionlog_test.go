package questionlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStemDropsStopwordsAndPunctuation(t *testing.T) {
	stem := ExtractStem("What's the status of your creative project this week?")
	assert.Equal(t, "whats status creative project week", stem)
}

func TestStemsSimilarAboveThreshold(t *testing.T) {
	assert.True(t, stemsSimilar("creative project status", "status creative project update", 0.5))
	assert.False(t, stemsSimilar("creative project status", "completely unrelated topic here", 0.5))
}

func TestLogAskedThenWasRecentlyAsked(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(filepath.Join(dir, "asked_questions.jsonl")).WithClock(func() time.Time { return now })

	require.NoError(t, l.LogAsked("How is the creative project going?", "check_in", "pattern", nil))

	assert.True(t, l.WasRecentlyAsked(ExtractStem("How's the creative project going?")))
	assert.False(t, l.WasRecentlyAsked(ExtractStem("What's the weather like today?")))
}

func TestWasRecentlyAskedExpiresAfterCooldown(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(filepath.Join(dir, "asked_questions.jsonl")).WithClock(func() time.Time { return now })
	require.NoError(t, l.LogAsked("How is the creative project going?", "check_in", "pattern", nil))

	later := now.AddDate(0, 0, CooldownDays+1)
	l2 := l.WithClock(func() time.Time { return later })
	assert.False(t, l2.WasRecentlyAsked(ExtractStem("How is the creative project going?")))
}

func TestMarkResponseReceivedUpdatesMostRecentMatch(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(filepath.Join(dir, "asked_questions.jsonl")).WithClock(func() time.Time { return now })
	require.NoError(t, l.LogAsked("How is the creative project going?", "check_in", "pattern", nil))

	stem := ExtractStem("How is the creative project going?")
	require.NoError(t, l.MarkResponseReceived(stem, "Going well, shipped a milestone."))

	entries, err := l.readAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ResponseReceived)
	assert.Equal(t, "Going well, shipped a milestone.", entries[0].ResponseSummary)
}

func TestCountAskedOnCountsMatchingDatePrefix(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(filepath.Join(dir, "asked_questions.jsonl")).WithClock(func() time.Time { return now })
	require.NoError(t, l.LogAsked("Question one?", "check_in", "pattern", nil))
	require.NoError(t, l.LogAsked("Question two?", "check_in", "pattern", nil))

	assert.Equal(t, 2, l.CountAskedOn("2025-06-01"))
	assert.Equal(t, 0, l.CountAskedOn("2025-06-02"))
}
