package domain

import "time"

// EventLevel enumerates runtime log severities.
type EventLevel string

const (
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// JobEvent is one append-only runtime log entry for a job. Events exist
// for diagnostics only; nothing reads them to make decisions, and a
// failed append never aborts the work that produced it.
type JobEvent struct {
	ID      int64
	JobID   string
	Level   EventLevel
	Message string
	Fields  []byte
	At      time.Time
}
