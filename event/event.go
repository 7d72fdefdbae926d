// Package event implements the unified event stream: the append-only,
// shard-per-day log of typed events that every other mindstream
// component reads from.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Surface identifies where an interaction originated.
type Surface string

const (
	SurfaceCLI      Surface = "cli"
	SurfaceIMessage Surface = "imessage"
	SurfaceWake     Surface = "wake"
	SurfaceDream    Surface = "dream"
	SurfaceWebhook  Surface = "webhook"
	SurfaceX        Surface = "x"
	SurfaceBluesky  Surface = "bluesky"
	SurfaceEmail    Surface = "email"
	SurfaceCalendar Surface = "calendar"
	SurfaceLocation Surface = "location"
	SurfaceSense    Surface = "sense"
	SurfaceSystem   Surface = "system"
)

// AllSurfaces lists every recognized Surface value, in the order the
// original enum declared them.
var AllSurfaces = []Surface{
	SurfaceCLI, SurfaceIMessage, SurfaceWake, SurfaceDream, SurfaceWebhook,
	SurfaceX, SurfaceBluesky, SurfaceEmail, SurfaceCalendar, SurfaceLocation,
	SurfaceSense, SurfaceSystem,
}

// Valid reports whether s is a recognized Surface.
func (s Surface) Valid() bool {
	for _, v := range AllSurfaces {
		if v == s {
			return true
		}
	}
	return false
}

// Type identifies the kind of event.
type Type string

const (
	TypeInteraction Type = "interaction"
	TypeSense       Type = "sense"
	TypeSystem      Type = "system"
	TypeHandoff     Type = "handoff"
)

var allTypes = []Type{TypeInteraction, TypeSense, TypeSystem, TypeHandoff}

// Valid reports whether t is a recognized Type.
func (t Type) Valid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Direction identifies which way an event flows.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

var allDirections = []Direction{DirectionInbound, DirectionOutbound, DirectionInternal}

// Valid reports whether d is a recognized Direction.
func (d Direction) Valid() bool {
	for _, v := range allDirections {
		if v == d {
			return true
		}
	}
	return false
}

// SchemaVersion is the current event schema tag.
const SchemaVersion = "1"

// Event is the atomic unit of the stream. Once written, no field is
// ever rewritten; consumers treat the JSONL lines as immutable.
type Event struct {
	SchemaVersion string                 `json:"schema_version"`
	ID            string                 `json:"id"`
	Timestamp     string                 `json:"timestamp"`
	Surface       Surface                `json:"surface"`
	Type          Type                   `json:"type"`
	Direction     Direction              `json:"direction"`
	Summary       string                 `json:"summary"`
	Distilled     bool                   `json:"distilled"`
	SessionID     string                 `json:"session_id,omitempty"`
	Content       string                 `json:"content,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewParams carries the fields a caller supplies when creating an event;
// ID, timestamp, and schema version are derived.
type NewParams struct {
	Surface   Surface
	Type      Type
	Direction Direction
	Summary   string
	SessionID string
	Content   string
	Metadata  map[string]interface{}
}

// New builds an Event with a generated ID and current UTC timestamp. It
// validates the enum fields so that callers cannot write malformed
// events into the stream.
func New(p NewParams) (Event, error) {
	if !p.Surface.Valid() {
		return Event{}, fmt.Errorf("event: invalid surface %q", p.Surface)
	}
	if !p.Type.Valid() {
		return Event{}, fmt.Errorf("event: invalid type %q", p.Type)
	}
	if !p.Direction.Valid() {
		return Event{}, fmt.Errorf("event: invalid direction %q", p.Direction)
	}

	meta := p.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}

	return Event{
		SchemaVersion: SchemaVersion,
		ID:            generateID(time.Now().UTC()),
		Timestamp:     formatTimestamp(time.Now().UTC()),
		Surface:       p.Surface,
		Type:          p.Type,
		Direction:     p.Direction,
		Summary:       p.Summary,
		SessionID:     p.SessionID,
		Content:       p.Content,
		Metadata:      meta,
	}, nil
}

// generateID produces an `evt_<unix_seconds>_<8hex>` identifier.
func generateID(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("evt_%d_%s", now.Unix(), hex.EncodeToString(buf[:]))
}

// formatTimestamp renders t as second-precision ISO-8601 UTC with a
// trailing Z, matching the original stream's wire format exactly.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseTimestamp parses an event timestamp, tolerating both a literal
// "Z" suffix and explicit "+00:00" offsets.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999Z07:00", value)
}
