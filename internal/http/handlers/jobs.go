package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"scenecast/internal/domain"
	"scenecast/internal/middleware"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
	statusEventLimit = 200
)

type startJobRequest struct {
	Topic      string `json:"topic"`
	Language   string `json:"language"`
	Audience   string `json:"audience"`
	Hint       string `json:"hint"`
	ReuseJobID string `json:"reuse_job_id"`
}

// StartJob accepts a generation request and returns immediately; the
// worker picks the queued job up from the database. With reuse_job_id
// the named job is reset in place instead of creating a new row.
func (a *App) StartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := decodeBody(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "topic required")
		return
	}

	language := middleware.NormalizeLanguage(req.Language)
	if language == "" {
		language = middleware.LanguageFromContext(r.Context())
	}
	audience := strings.TrimSpace(req.Audience)
	if audience == "" {
		audience = "general"
	}
	traceID := a.traceID(r)
	if traceID == "" {
		traceID = uuid.NewString()
	}

	if reuseID := strings.TrimSpace(req.ReuseJobID); reuseID != "" {
		job, err := a.Jobs.Get(r.Context(), reuseID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				a.error(w, http.StatusNotFound, "not_found", "reuse_job_id does not name a job")
				return
			}
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
			return
		}
		job.Topic = topic
		job.Language = language
		job.Audience = audience
		job.Hint = strings.TrimSpace(req.Hint)
		job.ReuseOf = reuseID
		job.TraceID = traceID
		if err := a.resetJob(r.Context(), job); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to reset job")
			return
		}
		a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "trace_id": traceID})
		return
	}

	job := &domain.Job{
		ID:       uuid.NewString(),
		Topic:    topic,
		Language: language,
		Audience: audience,
		Hint:     strings.TrimSpace(req.Hint),
		TraceID:  traceID,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	a.appendEvent(r.Context(), job.ID, domain.EventLevelInfo, "job accepted", map[string]any{
		"topic":    topic,
		"language": language,
		"audience": audience,
		"trace_id": traceID,
	})
	a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "trace_id": traceID})
}

// ListJobs returns recent jobs, newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := a.Jobs.List(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, jobSummary(job))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": items})
}

// GetStatus returns the full polling snapshot for one job.
func (a *App) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("get job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	scenes, err := a.Scenes.ListByJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load scenes")
		return
	}
	assets, err := a.Assets.ListByJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	events, err := a.Events.ListByJob(r.Context(), jobID, statusEventLimit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load events")
		return
	}

	sceneItems := make([]map[string]any, 0, len(scenes))
	for _, sc := range scenes {
		sceneItems = append(sceneItems, sceneView(sc))
	}
	assetItems := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		assetItems = append(assetItems, assetView(asset))
	}
	eventItems := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		eventItems = append(eventItems, eventView(ev))
	}

	a.json(w, http.StatusOK, map[string]any{
		"status": job.Status,
		"job":    jobView(*job),
		"scenes": sceneItems,
		"assets": assetItems,
		"events": eventItems,
	})
}

// DeleteJob removes a job: best-effort object cleanup first, then the
// cascading row delete.
func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	a.cleanupStorage(r, jobID)
	if err := a.Jobs.Delete(r.Context(), jobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("delete job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"accepted": true, "message": "job deleted"})
}

// RestartJob resets a terminal-or-stuck job back to queued, keeping its
// input but discarding every result.
func (a *App) RestartJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	traceID := a.traceID(r)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	job.TraceID = traceID
	if err := a.resetJob(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("restart job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to restart job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"message":  "job queued for restart",
		"trace_id": traceID,
	})
}

// resetJob implements the shared restart semantics: stored objects are
// cleaned up best-effort, child rows dropped, then the row returns to
// queued with cleared result slots. The restart event opens the new
// run's log.
func (a *App) resetJob(ctx context.Context, job *domain.Job) error {
	prevStatus := job.Status

	keys, err := a.Assets.ListKeys(ctx, job.ID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("list asset keys failed")
	}
	for _, key := range keys {
		if err := a.Files.Remove(ctx, key); err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("remove stored object failed")
		}
	}

	if err := a.Jobs.Reset(ctx, job); err != nil {
		return err
	}
	if err := a.Scenes.DeleteByJob(ctx, job.ID); err != nil {
		return err
	}
	if err := a.Assets.DeleteByJob(ctx, job.ID); err != nil {
		return err
	}
	if err := a.Events.DeleteByJob(ctx, job.ID); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("clear event log failed")
	}
	if err := a.Tasks.DeleteByJob(ctx, job.ID); err != nil {
		return err
	}
	a.appendEvent(ctx, job.ID, domain.EventLevelInfo, "job restarted", map[string]any{
		"previous_status": prevStatus,
		"trace_id":        job.TraceID,
	})
	return nil
}

// cleanupStorage removes a job's stored objects; failures only log.
func (a *App) cleanupStorage(r *http.Request, jobID string) {
	keys, err := a.Assets.ListKeys(r.Context(), jobID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("list asset keys failed")
		return
	}
	for _, key := range keys {
		if err := a.Files.Remove(r.Context(), key); err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("remove stored object failed")
		}
	}
}
