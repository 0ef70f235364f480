// Package pipeline turns a claimed job into its final package: plan the
// storyboard, write and validate the script, persist scenes, then fan
// narration synthesis out across a worker pool. Narration failures are
// counted, never fatal; only planning and persistence failures fail the
// job.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/providers/speech"
	"scenecast/internal/providers/text"
	"scenecast/internal/storage"
)

const (
	minScenes            = 1
	maxScenes            = 12
	defaultSceneCount    = 6
	defaultSceneDuration = 5
)

type jobStore interface {
	SetStoryboard(ctx context.Context, id string, payload []byte) error
	SetScript(ctx context.Context, id string, payload []byte) error
	Succeed(ctx context.Context, id string, finalPackage []byte) error
	Fail(ctx context.Context, id, message string) error
	BumpSpeechDone(ctx context.Context, id string) error
	BumpSpeechFailed(ctx context.Context, id string) error
}

type sceneStore interface {
	BulkInsert(ctx context.Context, jobID string, scenes []domain.Scene) ([]domain.Scene, error)
}

type assetStore interface {
	Insert(ctx context.Context, asset *domain.Asset) error
}

type eventStore interface {
	Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error
}

// Runner executes the generation pipeline for one claimed job at a time.
type Runner struct {
	jobs   jobStore
	scenes sceneStore
	assets assetStore
	events eventStore
	text   text.Generator
	speech speech.Generator
	files  storage.Store
	pool   *ants.Pool
	logger infra.Logger
}

func NewRunner(
	jobs jobStore,
	scenes sceneStore,
	assets assetStore,
	events eventStore,
	textGen text.Generator,
	speechGen speech.Generator,
	files storage.Store,
	pool *ants.Pool,
	logger infra.Logger,
) *Runner {
	return &Runner{
		jobs:   jobs,
		scenes: scenes,
		assets: assets,
		events: events,
		text:   textGen,
		speech: speechGen,
		files:  files,
		pool:   pool,
		logger: logger,
	}
}

// Run drives a claimed job to a terminal status. The returned error is
// reserved for faults that left the job in an unknown state; a job that
// was marked failed counts as handled and returns nil.
func (r *Runner) Run(ctx context.Context, job *domain.Job) error {
	logger := r.logger.With().Str("job_id", job.ID).Str("trace_id", job.TraceID).Logger()
	r.appendEvent(ctx, job.ID, domain.EventLevelInfo, "pipeline started", map[string]any{
		"topic":    job.Topic,
		"language": job.Language,
		"audience": job.Audience,
	})

	board, err := r.generateStoryboard(ctx, *job)
	if err != nil {
		return r.failJob(ctx, logger, job.ID, "storyboard: "+err.Error())
	}
	boardJSON, err := json.Marshal(board)
	if err != nil {
		return r.failJob(ctx, logger, job.ID, "encode storyboard: "+err.Error())
	}
	if err := r.jobs.SetStoryboard(ctx, job.ID, boardJSON); err != nil {
		return r.failJob(ctx, logger, job.ID, "persist storyboard: "+err.Error())
	}

	script, err := r.generateScript(ctx, *job, board)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyScript) {
			return r.failJob(ctx, logger, job.ID, domain.ErrEmptyScript.Error())
		}
		return r.failJob(ctx, logger, job.ID, "script: "+err.Error())
	}
	scriptJSON, err := json.Marshal(script)
	if err != nil {
		return r.failJob(ctx, logger, job.ID, "encode script: "+err.Error())
	}
	if err := r.jobs.SetScript(ctx, job.ID, scriptJSON); err != nil {
		return r.failJob(ctx, logger, job.ID, "persist script: "+err.Error())
	}

	inserted, err := r.scenes.BulkInsert(ctx, job.ID, scenesFromScript(script))
	if err != nil {
		return r.failJob(ctx, logger, job.ID, "persist scenes: "+err.Error())
	}

	tally := r.narrateScenes(ctx, logger, *job, inserted)

	pkg := domain.FinalPackage{
		Storyboard:  board,
		Script:      script,
		SceneCount:  len(inserted),
		AudioDone:   int(tally.done.Load()),
		AudioFailed: int(tally.failed.Load()),
		Language:    job.Language,
		GeneratedAt: time.Now().UTC(),
	}
	pkgJSON, err := json.Marshal(pkg)
	if err != nil {
		return r.failJob(ctx, logger, job.ID, "encode final package: "+err.Error())
	}
	if err := r.jobs.Succeed(ctx, job.ID, pkgJSON); err != nil {
		logger.Error().Err(err).Msg("pipeline: persist success state failed")
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	r.recordPackageAsset(ctx, job.ID, pkgJSON)
	r.appendEvent(ctx, job.ID, domain.EventLevelInfo, "pipeline finished", map[string]any{
		"scene_count":  len(inserted),
		"audio_done":   pkg.AudioDone,
		"audio_failed": pkg.AudioFailed,
	})
	logger.Info().
		Int("scene_count", len(inserted)).
		Int("audio_done", pkg.AudioDone).
		Int("audio_failed", pkg.AudioFailed).
		Msg("pipeline: job succeeded")
	return nil
}

func (r *Runner) failJob(ctx context.Context, logger infra.Logger, jobID, message string) error {
	if err := r.jobs.Fail(ctx, jobID, message); err != nil {
		logger.Error().Err(err).Str("reason", message).Msg("pipeline: persist failure state failed")
		return fmt.Errorf("mark job failed: %w", err)
	}
	r.appendEvent(ctx, jobID, domain.EventLevelError, "pipeline failed", map[string]any{"reason": message})
	logger.Warn().Str("reason", message).Msg("pipeline: job failed")
	return nil
}

func (r *Runner) generateStoryboard(ctx context.Context, job domain.Job) (domain.Storyboard, error) {
	raw, err := r.text.GenerateJSON(ctx, buildStoryboardPrompt(job), storyboardSchema)
	if err != nil {
		return domain.Storyboard{}, err
	}
	board, err := decodeModelPayload[domain.Storyboard](raw)
	if err != nil {
		return domain.Storyboard{}, fmt.Errorf("decode storyboard: %w", err)
	}
	switch {
	case board.SceneCount <= 0:
		board.SceneCount = defaultSceneCount
	case board.SceneCount < minScenes:
		board.SceneCount = minScenes
	case board.SceneCount > maxScenes:
		board.SceneCount = maxScenes
	}
	return board, nil
}

// generateScript runs stage two with one silent retry: a response that
// decodes but carries no usable scenes gets a single hardened re-ask
// before the job fails.
func (r *Runner) generateScript(ctx context.Context, job domain.Job, board domain.Storyboard) (domain.Script, error) {
	base := buildScriptPrompt(job, board)

	script, err := r.scriptAttempt(ctx, base)
	if err != nil {
		return domain.Script{}, err
	}
	if validateScript(script) == nil {
		return normalizeScript(job, script), nil
	}

	script, err = r.scriptAttempt(ctx, augmentScriptPrompt(base))
	if err != nil {
		return domain.Script{}, err
	}
	if err := validateScript(script); err != nil {
		return domain.Script{}, err
	}
	return normalizeScript(job, script), nil
}

// scriptAttempt generates once and decodes strictly, allowing a single
// repair pass when the payload is not valid JSON.
func (r *Runner) scriptAttempt(ctx context.Context, prompt string) (domain.Script, error) {
	raw, err := r.text.GenerateJSON(ctx, prompt, scriptSchema)
	if err != nil {
		return domain.Script{}, err
	}
	script, decodeErr := decodeModelPayload[domain.Script](raw)
	if decodeErr == nil {
		return script, nil
	}
	repaired, err := r.text.GenerateJSON(ctx, buildRepairPrompt(raw, scriptSchema), scriptSchema)
	if err != nil {
		return domain.Script{}, fmt.Errorf("decode script: %v; repair request: %w", decodeErr, err)
	}
	script, err = decodeModelPayload[domain.Script](repaired)
	if err != nil {
		return domain.Script{}, fmt.Errorf("decode script after repair: %w", err)
	}
	return script, nil
}

func validateScript(script domain.Script) error {
	if len(script.Scenes) == 0 {
		return domain.ErrEmptyScript
	}
	for _, sc := range script.Scenes {
		if strings.TrimSpace(sc.Narration) == "" {
			return domain.ErrEmptyScript
		}
	}
	return nil
}

// normalizeScript caps the scene list, rewrites indices to a dense
// 1..N sequence in the model's intended order and backfills publish
// metadata the model left blank.
func normalizeScript(job domain.Job, script domain.Script) domain.Script {
	scenes := script.Scenes
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].Index < scenes[j].Index })
	if len(scenes) > maxScenes {
		scenes = scenes[:maxScenes]
	}
	for i := range scenes {
		scenes[i].Index = i + 1
		scenes[i].Narration = strings.TrimSpace(scenes[i].Narration)
		if scenes[i].DurationSec <= 0 {
			scenes[i].DurationSec = defaultSceneDuration
		}
	}
	script.Scenes = scenes
	if strings.TrimSpace(script.TTSScript) == "" {
		lines := make([]string, 0, len(scenes))
		for _, sc := range scenes {
			lines = append(lines, sc.Narration)
		}
		script.TTSScript = strings.Join(lines, "\n")
	}
	if strings.TrimSpace(script.Platform.Title) == "" {
		script.Platform.Title = cases.Title(language.Make(job.Language)).String(job.Topic)
	}
	return script
}

func scenesFromScript(script domain.Script) []domain.Scene {
	scenes := make([]domain.Scene, 0, len(script.Scenes))
	for i, sc := range script.Scenes {
		scene := domain.Scene{
			Index:        sc.Index,
			Narration:    sc.Narration,
			OnScreenText: sc.OnScreenText,
			VisualBrief:  sc.VisualBrief,
			Mood:         sc.Mood,
			DurationSec:  sc.DurationSec,
		}
		if i < len(script.ImagePrompts) {
			scene.ImagePrompt = strings.TrimSpace(script.ImagePrompts[i])
		}
		scenes = append(scenes, scene)
	}
	return scenes
}

type speechTally struct {
	done   atomic.Int32
	failed atomic.Int32
}

// narrateScenes synthesizes narration for every scene on the worker
// pool. Each scene settles its own counters; the job keeps going no
// matter how many narrations fail.
func (r *Runner) narrateScenes(ctx context.Context, logger infra.Logger, job domain.Job, scenes []domain.Scene) *speechTally {
	tally := &speechTally{}
	var wg sync.WaitGroup
	for _, scene := range scenes {
		scene := scene
		if strings.TrimSpace(scene.Narration) == "" {
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r.narrateScene(ctx, logger, job, scene, tally)
		}
		if err := r.pool.Submit(task); err != nil {
			logger.Warn().Err(err).Int("scene_index", scene.Index).Msg("pipeline: pool rejected narration task, running inline")
			task()
		}
	}
	wg.Wait()
	return tally
}

func (r *Runner) narrateScene(ctx context.Context, logger infra.Logger, job domain.Job, scene domain.Scene, tally *speechTally) {
	clip, err := r.speech.Synthesize(ctx, scene.Narration)
	if err != nil {
		r.recordNarrationFailure(ctx, logger, job.ID, scene, "synthesize narration: "+err.Error())
		tally.failed.Add(1)
		return
	}

	key := storage.SceneAudioKey(job.ID, scene.Index, clip.MIME)
	written, err := r.files.Write(ctx, key, clip.Data, clip.MIME)
	if err != nil {
		r.recordNarrationFailure(ctx, logger, job.ID, scene, "store narration: "+err.Error())
		tally.failed.Add(1)
		return
	}
	url := r.files.URL(written)

	metadata, _ := json.Marshal(map[string]any{
		"mime":         clip.MIME,
		"provider":     r.speech.Name(),
		"scene_index":  scene.Index,
		"duration_sec": scene.DurationSec,
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
		logger.Warn().Err(err).Int("scene_index", scene.Index).Msg("pipeline: record narration asset failed")
	}
	if err := r.jobs.BumpSpeechDone(ctx, job.ID); err != nil {
		logger.Warn().Err(err).Msg("pipeline: bump speech_done failed")
	}
	tally.done.Add(1)
}

func (r *Runner) recordNarrationFailure(ctx context.Context, logger infra.Logger, jobID string, scene domain.Scene, reason string) {
	logger.Warn().Int("scene_index", scene.Index).Str("reason", reason).Msg("pipeline: scene narration failed")
	if err := r.jobs.BumpSpeechFailed(ctx, jobID); err != nil {
		logger.Warn().Err(err).Msg("pipeline: bump speech_failed failed")
	}
	r.appendEvent(ctx, jobID, domain.EventLevelWarn, "scene narration failed", map[string]any{
		"scene_index": scene.Index,
		"reason":      reason,
	})
}

func (r *Runner) recordPackageAsset(ctx context.Context, jobID string, pkgJSON []byte) {
	asset := &domain.Asset{
		JobID:    jobID,
		Kind:     domain.AssetKindMetadata,
		Metadata: pkgJSON,
	}
	if err := r.assets.Insert(ctx, asset); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("pipeline: record package asset failed")
	}
}

func (r *Runner) appendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) {
	if err := r.events.Append(ctx, jobID, level, message, fields); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("pipeline: append event failed")
	}
}

