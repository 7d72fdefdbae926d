package threads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDForTitleIsStableAcrossFormatting(t *testing.T) {
	a := IDForTitle("  Fix   the   Thing  ")
	b := IDForTitle("fix the thing")
	assert.Equal(t, a, b)
	assert.True(t, len(a) == len("thread_")+10)
}

func TestParseOpenThreadsHandlesNoneIdentified(t *testing.T) {
	text := "## Open Threads\nNone identified.\n\n## Next\nstuff\n"
	assert.Empty(t, ParseOpenThreads(text))
}

func TestParseOpenThreadsStripsBullets(t *testing.T) {
	text := "## Open Threads\n- Fix the parser\n* [ ] Ship the digest\n1. Talk to Sam\n\n## Next\n"
	titles := ParseOpenThreads(text)
	assert.Equal(t, []string{"Fix the parser", "Ship the digest", "Talk to Sam"}, titles)
}

func TestParseSessionID(t *testing.T) {
	text := "**Session ID:** abc-123\nmore text\n"
	assert.Equal(t, "abc-123", ParseSessionID(text))
}

func TestUpdatePreservesUnreferencedRecords(t *testing.T) {
	existing := []Record{{ID: "thread_old", Title: "Old thing", Status: "open"}}
	updated, ids := Update(existing, []string{"New thing"}, "handoff.md", "sess-1")

	assert.Len(t, updated, 2)
	assert.Len(t, ids, 1)

	foundOld := false
	for _, r := range updated {
		if r.ID == "thread_old" {
			foundOld = true
		}
	}
	assert.True(t, foundOld)
}

func TestIndexHandoffRoundTrip(t *testing.T) {
	dir := t.TempDir()
	handoffPath := filepath.Join(dir, "handoff.md")
	threadsPath := filepath.Join(dir, "threads.json")

	handoff := "**Session ID:** sess-42\n\n## Open Threads\n- Migrate the daily shards\n\n## Next\n"
	require.NoError(t, os.WriteFile(handoffPath, []byte(handoff), 0o644))

	records, ids, err := IndexHandoff(handoffPath, threadsPath)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Len(t, records, 1)
	assert.Equal(t, "Migrate the daily shards", records[0].Title)
	assert.Equal(t, "open", records[0].Status)

	reloaded := Load(threadsPath)
	require.Len(t, reloaded, 1)
	assert.Equal(t, records[0].ID, reloaded[0].ID)
}
