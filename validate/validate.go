// Package validate implements the unified event stream's schema and
// enum validation, used by the CLI `stream validate` subcommand.
package validate

import (
	"bufio"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/samara-dev/mindstream/event"
)

// requiredFields maps each required event field to a type-checking
// predicate over its decoded JSON value.
var requiredFields = map[string]func(interface{}) bool{
	"schema_version": isString,
	"id":             isString,
	"timestamp":      isString,
	"surface":        isString,
	"type":           isString,
	"direction":      isString,
	"summary":        isString,
	"distilled":      isBool,
}

var optionalFields = map[string]func(interface{}) bool{
	"session_id": isString,
	"content":    isString,
	"metadata":   isObject,
}

func isString(v interface{}) bool { _, ok := v.(string); return ok }
func isBool(v interface{}) bool   { _, ok := v.(bool); return ok }
func isObject(v interface{}) bool { _, ok := v.(map[string]interface{}); return ok }

// Event validates a single decoded event map, returning a list of
// human-readable error strings (empty when the event is well-formed).
func Event(data map[string]interface{}) []string {
	var errs []string

	for field, check := range requiredFields {
		v, ok := data[field]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing field: %s", field))
			continue
		}
		if !check(v) {
			errs = append(errs, fmt.Sprintf("invalid type for %s", field))
		}
	}

	if surface, ok := data["surface"].(string); ok {
		if !event.Surface(surface).Valid() {
			errs = append(errs, fmt.Sprintf("invalid surface: %s", surface))
		}
	}
	if typ, ok := data["type"].(string); ok {
		if !event.Type(typ).Valid() {
			errs = append(errs, fmt.Sprintf("invalid type: %s", typ))
		}
	}
	if direction, ok := data["direction"].(string); ok {
		if !event.Direction(direction).Valid() {
			errs = append(errs, fmt.Sprintf("invalid direction: %s", direction))
		}
	}

	if timestamp, ok := data["timestamp"].(string); ok {
		if _, err := event.ParseTimestamp(timestamp); err != nil {
			errs = append(errs, "invalid timestamp format")
		}
	}

	for field, check := range optionalFields {
		v, present := data[field]
		if !present || v == nil {
			continue
		}
		if !check(v) {
			errs = append(errs, fmt.Sprintf("invalid type for %s", field))
		}
	}

	return errs
}

// LineError describes a validation failure at a specific line of a
// stream file.
type LineError struct {
	Line   int      `json:"line"`
	ID     string   `json:"id,omitempty"`
	Error  string   `json:"error,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// StreamFile validates every line of a JSONL stream file, returning
// the accumulated errors and the total number of non-blank lines
// seen. A missing file yields zero errors and zero total lines.
func StreamFile(path string) ([]LineError, int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var errs []LineError
	total := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		total++

		var data map[string]interface{}
		if err := json.Unmarshal(line, &data); err != nil {
			errs = append(errs, LineError{Line: lineNo, Error: fmt.Sprintf("invalid json: %v", err)})
			continue
		}

		issues := Event(data)
		if len(issues) > 0 {
			id, _ := data["id"].(string)
			errs = append(errs, LineError{Line: lineNo, ID: id, Errors: issues})
		}
	}
	if err := scanner.Err(); err != nil {
		return errs, total, err
	}

	return errs, total, nil
}
