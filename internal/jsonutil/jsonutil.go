// Package jsonutil provides JSON utilities with consistent formatting for
// the edit history engine's on-disk artifacts.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalCompactLine marshals v as a single compact JSON object followed by
// a newline, suitable for one line of a JSON-lines log file.
func MarshalCompactLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON line: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalIndentWithNewline is like json.MarshalIndent but adds a trailing
// newline, for human-edited files such as settings.json.
func MarshalIndentWithNewline(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
