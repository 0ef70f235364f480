package domain

import "time"

// ClaimStatus enumerates image-generation claim states on a scene.
// The zero value (empty string) means the scene was never claimed.
type ClaimStatus string

const (
	ClaimStatusGenerating ClaimStatus = "generating"
	ClaimStatusSucceeded  ClaimStatus = "succeeded"
	ClaimStatusFailed     ClaimStatus = "failed"
)

// Scene is one beat of a job's script. Rows are bulk-inserted after the
// packaging stage validates; image fields fill in later, per scene, in
// any order. Regeneration overwrites.
type Scene struct {
	ID           string
	JobID        string
	Index        int
	Narration    string
	OnScreenText string
	VisualBrief  string
	Mood         string
	DurationSec  int
	ImagePrompt  string
	ImageKey     string
	ImageURL     string

	ClaimStatus    ClaimStatus
	ClaimRequestID string
	ClaimedAt      time.Time
	ClaimError     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasImage reports whether a generated image is already attached.
func (s *Scene) HasImage() bool {
	return s.ImageURL != ""
}

// ClaimStale reports whether an active claim is old enough to preempt.
func (s *Scene) ClaimStale(staleBefore time.Time) bool {
	return s.ClaimStatus == ClaimStatusGenerating && s.ClaimedAt.Before(staleBefore)
}
