package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validEvent() map[string]interface{} {
	return map[string]interface{}{
		"schema_version": "1",
		"id":              "evt_1_deadbeef",
		"timestamp":       "2025-06-01T12:00:00Z",
		"surface":         "cli",
		"type":            "interaction",
		"direction":       "inbound",
		"summary":         "hi",
		"distilled":       false,
	}
}

func TestValidEventHasNoErrors(t *testing.T) {
	assert.Empty(t, Event(validEvent()))
}

func TestMissingRequiredField(t *testing.T) {
	e := validEvent()
	delete(e, "summary")
	errs := Event(e)
	assert.Contains(t, errs, "missing field: summary")
}

func TestInvalidSurface(t *testing.T) {
	e := validEvent()
	e["surface"] = "carrier-pigeon"
	errs := Event(e)
	assert.Contains(t, errs, "invalid surface: carrier-pigeon")
}

func TestInvalidTimestamp(t *testing.T) {
	e := validEvent()
	e["timestamp"] = "not-a-date"
	errs := Event(e)
	assert.Contains(t, errs, "invalid timestamp format")
}

func TestOptionalMetadataWrongType(t *testing.T) {
	e := validEvent()
	e["metadata"] = "not-an-object"
	errs := Event(e)
	assert.Contains(t, errs, "invalid type for metadata")
}

func TestStreamFileMissingIsEmpty(t *testing.T) {
	errs, total, err := StreamFile("/nonexistent/path/events.jsonl")
	assert.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 0, total)
}
