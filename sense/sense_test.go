package sense

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samara-dev/mindstream/event"
)

type fakeAppender struct {
	events []event.Event
}

func (f *fakeAppender) Append(ev event.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func writeSenseFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunOnceIngestsValidSenseFile(t *testing.T) {
	dir := t.TempDir()
	writeSenseFile(t, dir, "battery.event.json", `{"sense":"sense","summary":"Battery at 12%","priority":"high"}`)

	app := &fakeAppender{}
	w := New(dir, app)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 0, result.Quarantined)
	require.Len(t, app.events, 1)
	assert.Equal(t, "Battery at 12%", app.events[0].Summary)
	assert.Equal(t, "high", app.events[0].Metadata["priority"])

	_, statErr := os.Stat(filepath.Join(dir, "battery.event.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunOnceExpandsMultiEventFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"events":[{"sense":"sense","summary":"first"},{"sense":"sense","summary":"second"}]}`
	writeSenseFile(t, dir, "multi.event.json", body)

	app := &fakeAppender{}
	w := New(dir, app)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ingested)
	require.Len(t, app.events, 2)
	assert.Equal(t, "first", app.events[0].Summary)
	assert.Equal(t, "second", app.events[1].Summary)
}

func TestRunOnceQuarantinesMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeSenseFile(t, dir, "broken.event.json", `{not valid json`)

	app := &fakeAppender{}
	w := New(dir, app)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ingested)
	assert.Equal(t, 1, result.Quarantined)
	assert.Empty(t, app.events)

	rejected, err := os.ReadDir(filepath.Join(dir, "rejected"))
	require.NoError(t, err)

	var dataFile, errFile bool
	for _, f := range rejected {
		if filepath.Ext(f.Name()) == ".txt" {
			errFile = true
		} else {
			dataFile = true
		}
	}
	assert.True(t, dataFile)
	assert.True(t, errFile)
}

func TestRunOnceIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeSenseFile(t, dir, "notes.txt", "irrelevant")

	app := &fakeAppender{}
	w := New(dir, app)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ingested)
	assert.Equal(t, 0, result.Quarantined)
}

func TestRunOnceMissingDirectoryIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	app := &fakeAppender{}
	w := New(dir, app)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ingested)
}
