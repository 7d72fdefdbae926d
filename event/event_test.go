package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesEnums(t *testing.T) {
	_, err := New(NewParams{Surface: "carrier-pigeon", Type: TypeInteraction, Direction: DirectionInbound})
	assert.Error(t, err)

	_, err = New(NewParams{Surface: SurfaceCLI, Type: "bogus", Direction: DirectionInbound})
	assert.Error(t, err)

	_, err = New(NewParams{Surface: SurfaceCLI, Type: TypeInteraction, Direction: "sideways"})
	assert.Error(t, err)
}

func TestNewProducesWellFormedEvent(t *testing.T) {
	ev, err := New(NewParams{
		Surface:   SurfaceCLI,
		Type:      TypeInteraction,
		Direction: DirectionInbound,
		Summary:   "asked about the weather",
	})
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, ev.SchemaVersion)
	assert.True(t, strings.HasPrefix(ev.ID, "evt_"))
	assert.Len(t, strings.Split(ev.ID, "_"), 3)
	assert.True(t, strings.HasSuffix(ev.Timestamp, "Z"))
	assert.NotNil(t, ev.Metadata)
	assert.False(t, ev.Distilled)
}

func TestParseTimestampAcceptsZSuffix(t *testing.T) {
	ts, err := ParseTimestamp("2025-06-01T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, 12, ts.Hour())
}
