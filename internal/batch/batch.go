// Package batch executes durable bulk-retry tasks under a wall-clock
// budget. A task that runs out of budget persists its counts and
// enqueues a continuation with the remaining scenes; chains are depth
// bounded and gated on the service credential.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scenecast/internal/domain"
	"scenecast/internal/imagegen"
	"scenecast/internal/infra"
	"scenecast/internal/providers/speech"
	"scenecast/internal/storage"
)

type jobSource interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	BumpSpeechDone(ctx context.Context, id string) error
	BumpSpeechFailed(ctx context.Context, id string) error
}

type sceneSource interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.Scene, error)
}

type assetSource interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.Asset, error)
	Insert(ctx context.Context, asset *domain.Asset) error
}

type taskQueue interface {
	Enqueue(ctx context.Context, task *domain.BatchTask) (string, error)
	Finish(ctx context.Context, task *domain.BatchTask) error
	Fail(ctx context.Context, task *domain.BatchTask, cause string) error
}

type eventSink interface {
	Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error
}

type imageFlow interface {
	Generate(ctx context.Context, job domain.Job, scene domain.Scene, force bool) (imagegen.Result, error)
}

// Config holds the runner's scalar knobs. Budget and depth are clamped
// to the platform ceilings.
type Config struct {
	Budget       time.Duration
	MaxDepth     int
	ServiceToken string
}

// Runner processes one claimed batch task at a time.
type Runner struct {
	jobs         jobSource
	scenes       sceneSource
	assets       assetSource
	tasks        taskQueue
	events       eventSink
	images       imageFlow
	speech       speech.Generator
	files        storage.Store
	budget       time.Duration
	maxDepth     int
	serviceToken string
	logger       infra.Logger
	now          func() time.Time
}

func NewRunner(
	jobs jobSource,
	scenes sceneSource,
	assets assetSource,
	tasks taskQueue,
	events eventSink,
	images imageFlow,
	speechGen speech.Generator,
	files storage.Store,
	cfg Config,
	logger infra.Logger,
) *Runner {
	budget := cfg.Budget
	if budget <= 0 {
		budget = 50 * time.Second
	}
	if budget > infra.MaxBatchBudget {
		budget = infra.MaxBatchBudget
	}
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = 10
	}
	if depth > infra.MaxBatchDepth {
		depth = infra.MaxBatchDepth
	}
	return &Runner{
		jobs:         jobs,
		scenes:       scenes,
		assets:       assets,
		tasks:        tasks,
		events:       events,
		images:       images,
		speech:       speechGen,
		files:        files,
		budget:       budget,
		maxDepth:     depth,
		serviceToken: strings.TrimSpace(cfg.ServiceToken),
		logger:       logger,
		now:          time.Now,
	}
}

// Run drives one claimed task to done or failed, chaining a
// continuation when the budget runs out first. Per-item failures are
// counted and never stop the batch.
func (r *Runner) Run(ctx context.Context, task *domain.BatchTask) error {
	logger := r.logger.With().
		Str("task_id", task.ID).
		Str("job_id", task.JobID).
		Str("kind", string(task.Kind)).
		Int("depth", task.Depth).
		Logger()

	job, err := r.jobs.Get(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn().Msg("batch: job gone, dropping task")
			return r.tasks.Fail(ctx, task, "job not found")
		}
		return fmt.Errorf("load job: %w", err)
	}

	scenes, err := r.scenes.ListByJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("list scenes: %w", err)
	}
	byID := make(map[string]domain.Scene, len(scenes))
	for _, sc := range scenes {
		byID[sc.ID] = sc
	}

	var hasAudio map[string]bool
	if task.Kind == domain.TaskKindAudioRetry && !task.Force {
		hasAudio, err = r.audioSceneSet(ctx, task.JobID)
		if err != nil {
			return err
		}
	}

	deadline := r.now().Add(r.budget)
	for i, sceneID := range task.SceneIDs {
		if ctx.Err() != nil || !r.now().Before(deadline) {
			return r.continueChain(ctx, logger, task, task.SceneIDs[i:])
		}
		scene, ok := byID[sceneID]
		if !ok {
			task.Skipped++
			continue
		}
		switch task.Kind {
		case domain.TaskKindImageRetry:
			r.retryImage(ctx, logger, task, *job, scene)
		case domain.TaskKindAudioRetry:
			r.retryAudio(ctx, logger, task, *job, scene, hasAudio)
		default:
			task.Skipped++
		}
	}

	task.Status = domain.TaskStatusDone
	if err := r.tasks.Finish(ctx, task); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	logger.Info().
		Int("succeeded", task.Succeeded).
		Int("failed", task.Failed).
		Int("skipped", task.Skipped).
		Msg("batch: task finished")
	return nil
}

func (r *Runner) retryImage(ctx context.Context, logger infra.Logger, task *domain.BatchTask, job domain.Job, scene domain.Scene) {
	res, err := r.images.Generate(ctx, job, scene, task.Force)
	if err != nil {
		logger.Warn().Err(err).Int("scene_index", scene.Index).Msg("batch: image retry errored")
		task.Failed++
		return
	}
	switch res.Outcome {
	case imagegen.OutcomeSucceeded, imagegen.OutcomeAlreadyExists:
		task.Succeeded++
	case imagegen.OutcomeFailed:
		task.Failed++
	default:
		task.Skipped++
	}
}

func (r *Runner) retryAudio(ctx context.Context, logger infra.Logger, task *domain.BatchTask, job domain.Job, scene domain.Scene, hasAudio map[string]bool) {
	if !task.Force && hasAudio[scene.ID] {
		task.Skipped++
		return
	}
	if strings.TrimSpace(scene.Narration) == "" {
		task.Skipped++
		return
	}

	clip, err := r.speech.Synthesize(ctx, scene.Narration)
	if err != nil {
		r.recordAudioFailure(ctx, logger, task, scene, "synthesize narration: "+err.Error())
		return
	}
	key := storage.SceneAudioKey(job.ID, scene.Index, clip.MIME)
	written, err := r.files.Write(ctx, key, clip.Data, clip.MIME)
	if err != nil {
		r.recordAudioFailure(ctx, logger, task, scene, "store narration: "+err.Error())
		return
	}
	url := r.files.URL(written)

	metadata, _ := json.Marshal(map[string]any{
		"mime":        clip.MIME,
		"provider":    r.speech.Name(),
		"scene_index": scene.Index,
		"retried":     true,
	})
	asset := &domain.Asset{
		JobID:      job.ID,
		SceneID:    scene.ID,
		Kind:       domain.AssetKindAudio,
		StorageKey: written,
		URL:        url,
		Metadata:   metadata,
	}
	if err := r.assets.Insert(ctx, asset); err != nil {
		logger.Warn().Err(err).Int("scene_index", scene.Index).Msg("batch: record narration asset failed")
	}
	if err := r.jobs.BumpSpeechDone(ctx, job.ID); err != nil {
		logger.Warn().Err(err).Msg("batch: bump speech_done failed")
	}
	task.Succeeded++
}

func (r *Runner) recordAudioFailure(ctx context.Context, logger infra.Logger, task *domain.BatchTask, scene domain.Scene, reason string) {
	logger.Warn().Int("scene_index", scene.Index).Str("reason", reason).Msg("batch: audio retry failed")
	if err := r.jobs.BumpSpeechFailed(ctx, task.JobID); err != nil {
		logger.Warn().Err(err).Msg("batch: bump speech_failed failed")
	}
	r.appendEvent(ctx, task.JobID, domain.EventLevelWarn, "scene narration retry failed", map[string]any{
		"scene_index": scene.Index,
		"reason":      reason,
	})
	task.Failed++
}

// continueChain persists this task's counts and schedules the rest of
// the list as a new task one level deeper. The chain stops, with an
// error event, at the depth ceiling or when the service credential is
// not configured.
func (r *Runner) continueChain(ctx context.Context, logger infra.Logger, task *domain.BatchTask, remaining []string) error {
	persistCtx := context.WithoutCancel(ctx)
	task.Status = domain.TaskStatusDone

	if task.Depth+1 >= r.maxDepth {
		logger.Error().Int("remaining", len(remaining)).Msg("batch: depth limit reached, dropping remainder")
		r.appendEvent(persistCtx, task.JobID, domain.EventLevelError, "batch depth limit reached", map[string]any{
			"remaining": len(remaining),
			"depth":     task.Depth,
		})
		return r.tasks.Finish(persistCtx, task)
	}
	if r.serviceToken == "" {
		logger.Error().Int("remaining", len(remaining)).Msg("batch: service credential missing; continuation chain stops")
		r.appendEvent(persistCtx, task.JobID, domain.EventLevelError, "batch continuation not scheduled", map[string]any{
			"reason":    "service credential missing",
			"remaining": len(remaining),
		})
		return r.tasks.Finish(persistCtx, task)
	}

	next := &domain.BatchTask{
		JobID:       task.JobID,
		Kind:        task.Kind,
		SceneIDs:    remaining,
		Force:       task.Force,
		MissingOnly: task.MissingOnly,
		Depth:       task.Depth + 1,
		Attempted:   len(remaining),
	}
	if _, err := r.tasks.Enqueue(persistCtx, next); err != nil {
		if failErr := r.tasks.Fail(persistCtx, task, "enqueue continuation: "+err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("batch: persist task failure failed")
		}
		return fmt.Errorf("enqueue continuation: %w", err)
	}
	logger.Info().
		Int("remaining", len(remaining)).
		Int("next_depth", next.Depth).
		Msg("batch: continuation enqueued")
	return r.tasks.Finish(persistCtx, task)
}

func (r *Runner) audioSceneSet(ctx context.Context, jobID string) (map[string]bool, error) {
	assets, err := r.assets.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	set := make(map[string]bool)
	for _, a := range assets {
		if a.Kind == domain.AssetKindAudio && a.SceneID != "" {
			set[a.SceneID] = true
		}
	}
	return set, nil
}

func (r *Runner) appendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) {
	if err := r.events.Append(ctx, jobID, level, message, fields); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("batch: append event failed")
	}
}
