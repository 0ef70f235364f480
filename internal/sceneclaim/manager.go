// Package sceneclaim grants time-bounded exclusive claims on scene
// image generation, so duplicate clicks and racing retries cannot run
// the same generation twice.
package sceneclaim

import (
	"context"
	"time"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/store"
)

// Manager implements the claim protocol over the scene store.
type Manager struct {
	scenes     *store.SceneStore
	staleAfter time.Duration
	logger     infra.Logger
}

func NewManager(scenes *store.SceneStore, staleAfter time.Duration, logger infra.Logger) *Manager {
	return &Manager{scenes: scenes, staleAfter: staleAfter, logger: logger}
}

// StaleBefore returns the cutoff for the configured staleness window:
// generating-claims older than this are considered abandoned.
func (m *Manager) StaleBefore() time.Time {
	return time.Now().Add(-m.staleAfter)
}

// Acquire attempts to take the generation claim for a scene. It reads
// the current claim, decides eligibility, then writes conditionally on
// the claim identity it observed. Of concurrent acquirers at most one
// gets true; everyone else must not generate.
//
// Eligibility: no prior claim, prior claim not generating, or a
// generating claim older than staleBefore.
func (m *Manager) Acquire(ctx context.Context, jobID, sceneID, requestID string, staleBefore time.Time) (bool, error) {
	scene, err := m.scenes.Get(ctx, sceneID, jobID)
	if err != nil {
		return false, err
	}

	if scene.ClaimStatus == domain.ClaimStatusGenerating && !scene.ClaimStale(staleBefore) {
		return false, nil
	}

	won, err := m.scenes.AcquireClaim(ctx, sceneID, requestID, scene.ClaimStatus, scene.ClaimRequestID)
	if err != nil {
		return false, err
	}
	if won {
		m.logger.Debug().
			Str("scene_id", sceneID).
			Str("request_id", requestID).
			Msg("scene claim acquired")
	} else {
		m.logger.Debug().
			Str("scene_id", sceneID).
			Str("request_id", requestID).
			Msg("scene claim lost race")
	}
	return won, nil
}

// Complete marks the claim succeeded and records the generated image.
// If requestID no longer holds the claim this is a no-op returning
// false; a stale late completion must never overwrite a newer claim.
func (m *Manager) Complete(ctx context.Context, sceneID, requestID, imageKey, imageURL string) (bool, error) {
	return m.scenes.CompleteClaim(ctx, sceneID, requestID, imageKey, imageURL)
}

// Fail marks the claim failed with a message, gated like Complete.
func (m *Manager) Fail(ctx context.Context, sceneID, requestID, message string) (bool, error) {
	return m.scenes.FailClaim(ctx, sceneID, requestID, message)
}
