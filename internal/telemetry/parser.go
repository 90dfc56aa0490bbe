// Package telemetry parses raw device lines into typed readings.
//
// The tracker emits newline-delimited JSON objects over its serial or
// network link.  Non-JSON diagnostic lines and status/error messages are
// expected on the wire and are reported as distinct parse errors rather
// than readings; they never stop ingestion.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/types"
)

// ErrorKind classifies a rejected line.
type ErrorKind int

const (
	// NotJSON marks a line that does not begin with '{'.  Device boot
	// banners and other diagnostics fall in this bucket.
	NotJSON ErrorKind = iota
	// Malformed marks a line that looks like JSON but fails to decode.
	Malformed
	// MissingField marks a structurally valid object missing a required
	// telemetry field, or carrying it with the wrong type or range.
	MissingField
	// DeviceMessage marks an out-of-band status/error object.
	DeviceMessage
)

func (k ErrorKind) String() string {
	switch k {
	case NotJSON:
		return "not-json"
	case Malformed:
		return "malformed"
	case MissingField:
		return "missing-field"
	case DeviceMessage:
		return "device-message"
	}
	return "unknown"
}

// ParseError reports why a line was rejected.  Field is set for
// MissingField; Message carries the device text for DeviceMessage.
type ParseError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("telemetry: missing or invalid field %q", e.Field)
	case DeviceMessage:
		return fmt.Sprintf("telemetry: device message: %s", e.Message)
	default:
		return fmt.Sprintf("telemetry: %s line", e.Kind)
	}
}

// telemetryFields are the wire names the device must supply on every
// telemetry line.  The timestamp is stamped here, not transmitted.
var telemetryFields = []string{
	"voltage", "current", "power", "angleH", "angleV", "light", "dustAlert", "dustRaw",
}

// Parse converts one raw line into a Reading.  It is side-effect free: one
// line, one verdict, no retries.  The returned reading's timestamp is the
// time of the call.
func Parse(line []byte) (types.Reading, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return types.Reading{}, &ParseError{Kind: NotJSON}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return types.Reading{}, &ParseError{Kind: Malformed}
	}

	if msg, ok := deviceMessage(fields); ok {
		return types.Reading{}, &ParseError{Kind: DeviceMessage, Message: msg}
	}

	r := types.Reading{Timestamp: time.Now()}

	var err error
	if r.VoltageV, err = numberField(fields, "voltage"); err != nil {
		return types.Reading{}, err
	}
	if r.CurrentMA, err = numberField(fields, "current"); err != nil {
		return types.Reading{}, err
	}
	if r.PowerW, err = numberField(fields, "power"); err != nil {
		return types.Reading{}, err
	}
	if r.AngleHorizontal, err = intField(fields, "angleH"); err != nil {
		return types.Reading{}, err
	}
	if r.AngleVertical, err = intField(fields, "angleV"); err != nil {
		return types.Reading{}, err
	}
	if r.LightPercent, err = intField(fields, "light"); err != nil {
		return types.Reading{}, err
	}
	if r.DustAlert, err = boolField(fields, "dustAlert"); err != nil {
		return types.Reading{}, err
	}
	if r.DustRaw, err = intField(fields, "dustRaw"); err != nil {
		return types.Reading{}, err
	}

	if r.VoltageV < 0 {
		return types.Reading{}, &ParseError{Kind: MissingField, Field: "voltage"}
	}
	if r.CurrentMA < 0 {
		return types.Reading{}, &ParseError{Kind: MissingField, Field: "current"}
	}
	if r.PowerW < 0 {
		return types.Reading{}, &ParseError{Kind: MissingField, Field: "power"}
	}

	return r, nil
}

// deviceMessage recognizes the disjoint status/error shape: an object with
// a "status" or "error" string and none of the telemetry fields.
func deviceMessage(fields map[string]json.RawMessage) (string, bool) {
	for _, name := range telemetryFields {
		if _, ok := fields[name]; ok {
			return "", false
		}
	}
	for _, key := range []string{"status", "error"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		return fmt.Sprintf("%s: %s", key, msg), true
	}
	return "", false
}

func numberField(fields map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, &ParseError{Kind: MissingField, Field: name}
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &ParseError{Kind: MissingField, Field: name}
	}
	return v, nil
}

func intField(fields map[string]json.RawMessage, name string) (int, error) {
	v, err := numberField(fields, name)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func boolField(fields map[string]json.RawMessage, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok {
		return false, &ParseError{Kind: MissingField, Field: name}
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, &ParseError{Kind: MissingField, Field: name}
	}
	return v, nil
}
