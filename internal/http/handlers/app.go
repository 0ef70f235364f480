package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"scenecast/internal/domain"
	"scenecast/internal/imagegen"
	"scenecast/internal/infra"
	"scenecast/internal/middleware"
	"scenecast/internal/storage"
)

// JobDirectory is the job persistence surface the handlers consume.
type JobDirectory interface {
	Create(ctx context.Context, job *domain.Job) error
	Reset(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, limit int) ([]domain.Job, error)
	Delete(ctx context.Context, id string) error
}

type SceneDirectory interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.Scene, error)
	Get(ctx context.Context, sceneID, jobID string) (*domain.Scene, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

type AssetDirectory interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.Asset, error)
	ListKeys(ctx context.Context, jobID string) ([]string, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

type EventLog interface {
	Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.BatchTask) (string, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

// ImageFlow runs the claim-guarded single-scene generation.
type ImageFlow interface {
	Generate(ctx context.Context, job domain.Job, scene domain.Scene, force bool) (imagegen.Result, error)
}

// App wires the HTTP surface to storage, the task queue and the image
// generation flow. Fields are filled by the composition root (or a test)
// with struct-literal construction.
type App struct {
	Jobs   JobDirectory
	Scenes SceneDirectory
	Assets AssetDirectory
	Events EventLog
	Tasks  TaskQueue
	Images ImageFlow
	Files  storage.Store

	Config    *infra.Config
	Logger    infra.Logger
	StartedAt time.Time
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, hint string) {
	a.json(w, code, errorResponse{Error: errCode, Hint: hint})
}

// decodeBody decodes a JSON request body. An absent or empty body
// leaves v at its zero value; several endpoints take all-optional
// parameters.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// appendEvent is best-effort: an unloggable event never fails a request.
func (a *App) appendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) {
	if err := a.Events.Append(ctx, jobID, level, message, fields); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("append event failed")
	}
}

func (a *App) traceID(r *http.Request) string {
	return middleware.RequestIDFromContext(r.Context())
}

func jobSummary(job domain.Job) map[string]any {
	return map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"topic":      job.Topic,
		"language":   job.Language,
		"audience":   job.Audience,
		"trace_id":   job.TraceID,
		"error":      job.ErrorMessage,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
}

func jobView(job domain.Job) map[string]any {
	view := jobSummary(job)
	view["hint"] = job.Hint
	view["reuse_of"] = job.ReuseOf
	view["storyboard"] = rawOrNull(job.Storyboard)
	view["script"] = rawOrNull(job.Script)
	view["final_package"] = rawOrNull(job.FinalPackage)
	view["speech_done"] = job.SpeechDone
	view["speech_failed"] = job.SpeechFailed
	view["images_done"] = job.ImagesDone
	return view
}

func sceneView(sc domain.Scene) map[string]any {
	view := map[string]any{
		"id":             sc.ID,
		"index":          sc.Index,
		"narration":      sc.Narration,
		"on_screen_text": sc.OnScreenText,
		"visual_brief":   sc.VisualBrief,
		"mood":           sc.Mood,
		"duration_sec":   sc.DurationSec,
		"image_prompt":   sc.ImagePrompt,
		"image_url":      sc.ImageURL,
	}
	if sc.ClaimStatus != "" {
		view["claim"] = map[string]any{
			"status":     sc.ClaimStatus,
			"claimed_at": sc.ClaimedAt,
			"error":      sc.ClaimError,
		}
	}
	return view
}

func assetView(asset domain.Asset) map[string]any {
	return map[string]any{
		"id":          asset.ID,
		"scene_id":    asset.SceneID,
		"kind":        asset.Kind,
		"storage_key": asset.StorageKey,
		"url":         asset.URL,
		"metadata":    rawOrNull(asset.Metadata),
		"created_at":  asset.CreatedAt,
	}
}

func eventView(ev domain.JobEvent) map[string]any {
	return map[string]any{
		"level":   ev.Level,
		"message": ev.Message,
		"fields":  rawOrNull(ev.Fields),
		"at":      ev.At,
	}
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
