package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further pipeline work.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job tracks one storyboard-generation request through the pipeline.
// The three result slots fill in stage order and stay nil until their
// stage completes. Progress counters are plain columns updated by
// single-statement increments, never read-modify-write.
type Job struct {
	ID           string
	Status       JobStatus
	Topic        string
	Language     string
	Audience     string
	Hint         string
	ReuseOf      string
	TraceID      string
	Storyboard   []byte
	Script       []byte
	FinalPackage []byte
	ErrorMessage string
	SpeechDone   int
	SpeechFailed int
	ImagesDone   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
