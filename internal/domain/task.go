package domain

import "time"

// TaskKind enumerates batch task categories.
type TaskKind string

const (
	TaskKindImageRetry TaskKind = "image_retry"
	TaskKindAudioRetry TaskKind = "audio_retry"
)

// TaskStatus enumerates batch task lifecycle states.
type TaskStatus string

const (
	TaskStatusQueued  TaskStatus = "queued"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// BatchTask is one durable slice of a bulk regeneration request. A task
// that runs out of time budget enqueues a continuation task carrying the
// unprocessed scene ids and depth+1; the chain stops at the depth cap.
type BatchTask struct {
	ID          string
	JobID       string
	Kind        TaskKind
	SceneIDs    []string
	Force       bool
	MissingOnly bool
	Depth       int
	Status      TaskStatus
	Attempted   int
	Succeeded   int
	Failed      int
	Skipped     int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
