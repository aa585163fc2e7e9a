// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package models

import (
	"bytes"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// timestampLayouts are tried in order when parsing backend timestamps.
// The results service emits naive ISO-8601 values (no zone) which are
// interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a backend timestamp. ok is false for empty or
// unrecognized input.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// ScalarString renders a raw JSON scalar as a string.
// Strings are unquoted, numbers and booleans keep their literal text,
// null and missing values become "".
func ScalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// firstNonEmpty returns the first argument that is not the empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FirstPresent returns the first raw value that is present and not null.
func FirstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			return v
		}
	}
	return nil
}
