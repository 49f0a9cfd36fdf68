package model

import "fmt"

// WarningKind classifies a recoverable problem surfaced to the user.
type WarningKind string

const (
	WarningGeocodeFailed   WarningKind = "geocode_failed"
	WarningTableMissing    WarningKind = "table_missing"
	WarningTableUnreadable WarningKind = "table_unreadable"
	WarningRowSkipped      WarningKind = "row_skipped"
	WarningDefaultApplied  WarningKind = "default_applied"
)

// Warning is a non-fatal condition encountered while building an analysis.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

// Warnf builds a Warning with a formatted message.
func Warnf(kind WarningKind, format string, args ...any) Warning {
	return Warning{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
