package event

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "stream"))
	require.NoError(t, err)
	return s
}

func mustEvent(t *testing.T, summary string) Event {
	t.Helper()
	ev, err := New(NewParams{
		Surface:   SurfaceCLI,
		Type:      TypeInteraction,
		Direction: DirectionInbound,
		Summary:   summary,
	})
	require.NoError(t, err)
	return ev
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	s := newTestStream(t)

	ev := mustEvent(t, "hello stream")
	require.NoError(t, s.Append(ev))

	results, err := s.Query(QueryOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ev.ID, results[0]["id"])
	assert.Equal(t, "hello stream", results[0]["summary"])
}

func TestQueryExcludesDistilledByDefault(t *testing.T) {
	s := newTestStream(t)
	ev := mustEvent(t, "will be distilled")
	require.NoError(t, s.Append(ev))

	n, err := s.MarkDistilled([]string{ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Query(QueryOptions{IncludeDistilled: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0]["distilled"])
}

func TestMarkDistilledIsIdempotent(t *testing.T) {
	s := newTestStream(t)
	ev := mustEvent(t, "mark twice")
	require.NoError(t, s.Append(ev))

	n1, err := s.MarkDistilled([]string{ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := s.MarkDistilled([]string{ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n2)
}

func TestQueryFiltersBySurfaceAndType(t *testing.T) {
	s := newTestStream(t)
	cliEvent := mustEvent(t, "cli thing")
	imEvent, err := New(NewParams{Surface: SurfaceIMessage, Type: TypeInteraction, Direction: DirectionInbound, Summary: "imessage thing"})
	require.NoError(t, err)

	require.NoError(t, s.Append(cliEvent))
	require.NoError(t, s.Append(imEvent))

	results, err := s.Query(QueryOptions{Surface: SurfaceIMessage})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "imessage thing", results[0]["summary"])
}

func TestRebuildDistilledIndexFromFlags(t *testing.T) {
	s := newTestStream(t)
	ev := mustEvent(t, "flagged distilled")
	ev.Distilled = true
	require.NoError(t, s.Append(ev))

	n, err := s.RebuildDistilledIndex()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMigrateLegacyToDailySplitsByDate(t *testing.T) {
	s := newTestStream(t)

	legacyPath := filepath.Join(s.streamDir, "events.jsonl")
	ev := mustEvent(t, "legacy event")
	line, err := marshalForTest(ev)
	require.NoError(t, err)
	require.NoError(t, writeTestFile(legacyPath, line))

	migrated, err := s.MigrateLegacyToDaily(false)
	require.NoError(t, err)
	assert.Equal(t, 1, migrated)
	assert.False(t, fileExists(legacyPath))

	results, err := s.Query(QueryOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
