// Package imagegen runs a single scene's claim-guarded image generation:
// acquire the claim, render, upload, complete. Both the synchronous HTTP
// path and the batch retry worker go through the same flow.
package imagegen

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/providers/image"
	"scenecast/internal/storage"
)

// Outcome describes how a generation request ended.
type Outcome string

const (
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeInProgress    Outcome = "in_progress"
	OutcomeSucceeded     Outcome = "succeeded"
	OutcomeFailed        Outcome = "failed"
)

// Result reports the outcome of one generation request.
type Result struct {
	Outcome  Outcome
	ImageURL string
	Reason   string
}

type claimGate interface {
	StaleBefore() time.Time
	Acquire(ctx context.Context, jobID, sceneID, requestID string, staleBefore time.Time) (bool, error)
	Complete(ctx context.Context, sceneID, requestID, imageKey, imageURL string) (bool, error)
	Fail(ctx context.Context, sceneID, requestID, message string) (bool, error)
}

type jobCounter interface {
	BumpImagesDone(ctx context.Context, jobID string) error
}

type assetRecorder interface {
	Insert(ctx context.Context, asset *domain.Asset) error
}

type eventRecorder interface {
	Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error
}

// Service renders scene artwork under the claim protocol.
type Service struct {
	claims   claimGate
	jobs     jobCounter
	assets   assetRecorder
	events   eventRecorder
	renderer image.Generator
	files    storage.Store
	sizeHint string
	logger   infra.Logger
}

func NewService(
	claims claimGate,
	jobs jobCounter,
	assets assetRecorder,
	events eventRecorder,
	renderer image.Generator,
	files storage.Store,
	sizeHint string,
	logger infra.Logger,
) *Service {
	return &Service{
		claims:   claims,
		jobs:     jobs,
		assets:   assets,
		events:   events,
		renderer: renderer,
		files:    files,
		sizeHint: sizeHint,
		logger:   logger,
	}
}

// Generate runs the claim-guarded flow for one scene. Generation and
// storage failures are folded into a failed Result so the claim records
// them; the returned error is reserved for database-level faults.
func (s *Service) Generate(ctx context.Context, job domain.Job, scene domain.Scene, force bool) (Result, error) {
	if scene.HasImage() && !force {
		return Result{Outcome: OutcomeAlreadyExists, ImageURL: scene.ImageURL}, nil
	}

	requestID := uuid.NewString()
	won, err := s.claims.Acquire(ctx, job.ID, scene.ID, requestID, s.claims.StaleBefore())
	if err != nil {
		return Result{}, err
	}
	if !won {
		return Result{Outcome: OutcomeInProgress}, nil
	}

	prompt := BuildScenePrompt(scene, styleGuideFrom(job))
	asset, genErr := s.renderer.Generate(ctx, image.Request{
		Prompt:   prompt,
		SizeHint: s.sizeHint,
		Seed:     scene.ID,
	})
	if genErr != nil {
		return s.fail(ctx, job.ID, scene, requestID, genErr.Error())
	}
	if asset == nil || len(asset.Data) == 0 {
		return s.fail(ctx, job.ID, scene, requestID, "image provider returned no data")
	}

	key := storage.SceneImageKey(job.ID, scene.Index, asset.MIME)
	written, err := s.files.Write(ctx, key, asset.Data, asset.MIME)
	if err != nil {
		return s.fail(ctx, job.ID, scene, requestID, "store image: "+err.Error())
	}
	url := s.files.URL(written)

	done, err := s.claims.Complete(ctx, scene.ID, requestID, written, url)
	if err != nil {
		return Result{}, err
	}
	if !done {
		// The claim went stale during generation and another request took
		// it over; that holder is now authoritative.
		s.logger.Warn().
			Str("scene_id", scene.ID).
			Str("request_id", requestID).
			Msg("imagegen: claim lost before completion")
		return Result{Outcome: OutcomeInProgress}, nil
	}

	if err := s.jobs.BumpImagesDone(ctx, job.ID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("imagegen: bump images_done failed")
	}
	s.recordAsset(ctx, job.ID, scene, written, url, asset.MIME)
	s.appendEvent(ctx, job.ID, domain.EventLevelInfo, "scene image generated", map[string]any{
		"scene_index": scene.Index,
		"provider":    s.renderer.Name(),
	})

	return Result{Outcome: OutcomeSucceeded, ImageURL: url}, nil
}

func (s *Service) fail(ctx context.Context, jobID string, scene domain.Scene, requestID, reason string) (Result, error) {
	if _, err := s.claims.Fail(ctx, scene.ID, requestID, reason); err != nil {
		return Result{}, err
	}
	s.appendEvent(ctx, jobID, domain.EventLevelError, "scene image generation failed", map[string]any{
		"scene_index": scene.Index,
		"reason":      reason,
	})
	return Result{Outcome: OutcomeFailed, Reason: reason}, nil
}

func (s *Service) recordAsset(ctx context.Context, jobID string, scene domain.Scene, key, url, mime string) {
	metadata, _ := json.Marshal(map[string]any{
		"mime":        mime,
		"provider":    s.renderer.Name(),
		"scene_index": scene.Index,
	})
	asset := &domain.Asset{
		JobID:      jobID,
		SceneID:    scene.ID,
		Kind:       domain.AssetKindImage,
		StorageKey: key,
		URL:        url,
		Metadata:   metadata,
	}
	if err := s.assets.Insert(ctx, asset); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("imagegen: record asset failed")
	}
}

func (s *Service) appendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) {
	if err := s.events.Append(ctx, jobID, level, message, fields); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("imagegen: append event failed")
	}
}

func styleGuideFrom(job domain.Job) string {
	if len(job.Script) == 0 {
		return ""
	}
	var script domain.Script
	if err := json.Unmarshal(job.Script, &script); err != nil {
		return ""
	}
	return script.StyleGuide
}

