// Package models contains the core data structures for logalert.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Well-known severities, in ascending order. Records may carry any other
// string; matching is by case-insensitive equality, not by rank.
const (
	SeverityDebug = "DEBUG"
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityError = "ERROR"
	SeverityFatal = "FATAL"
)

// LogRecord is a single log record as fetched from the log source.
// Records are owned by the source and treated as read-only here.
type LogRecord struct {
	// ID is optional; see Key for the derived form.
	ID string `json:"id,omitempty"`

	// Severity is an enum-like level string (DEBUG, INFO, WARN, ERROR, FATAL, ...).
	Severity string `json:"severity"`

	// Message is the main log message content.
	Message string `json:"message"`

	// Source identifies the emitting service.
	Source string `json:"source"`

	// Timestamp is when the log event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the record id, or "<source>-<timestamp>" when the id is empty.
func (r *LogRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	source := r.Source
	if source == "" {
		source = "unknown"
	}
	return source + "-" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// JSON returns the record as JSON bytes.
func (r *LogRecord) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// String returns a string representation of the record.
func (r *LogRecord) String() string {
	return r.Timestamp.Format(time.RFC3339) + " [" + r.Severity + "] " + r.Source + ": " + r.Message
}

// IsError returns true if the severity is ERROR or FATAL.
func (r *LogRecord) IsError() bool {
	switch NormalizeSeverity(r.Severity) {
	case SeverityError, SeverityFatal:
		return true
	}
	return false
}

// NormalizeSeverity trims and upper-cases a severity string.
func NormalizeSeverity(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
