package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scenecast/internal/domain"
)

type retryImagesRequest struct {
	SceneIDs    []string `json:"scene_ids"`
	MissingOnly bool     `json:"missing_only"`
}

type retryAudioRequest struct {
	Force    bool     `json:"force"`
	SceneIDs []string `json:"scene_ids"`
}

// RetryImages accepts a bulk image regeneration request. Targets and
// skips are decided here at accept time; the work itself runs from the
// durable batch queue under the worker's time budget.
func (a *App) RetryImages(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req retryImagesRequest
	if err := decodeBody(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	scenes, ok := a.loadJobScenes(w, r, jobID)
	if !ok {
		return
	}

	selected, skipped := selectScenes(scenes, req.SceneIDs)
	var targets []string
	for _, sc := range selected {
		if req.MissingOnly && sc.HasImage() {
			skipped++
			continue
		}
		targets = append(targets, sc.ID)
	}

	result := map[string]any{
		"attempted": len(targets),
		"succeeded": 0,
		"failed":    0,
		"skipped":   skipped,
	}
	if len(targets) == 0 {
		a.json(w, http.StatusAccepted, result)
		return
	}

	task := &domain.BatchTask{
		JobID:       jobID,
		Kind:        domain.TaskKindImageRetry,
		SceneIDs:    targets,
		Force:       !req.MissingOnly,
		MissingOnly: req.MissingOnly,
		Attempted:   len(targets),
	}
	taskID, err := a.Tasks.Enqueue(r.Context(), task)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("enqueue image retry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue retry")
		return
	}
	a.appendEvent(r.Context(), jobID, domain.EventLevelInfo, "image retry accepted", map[string]any{
		"attempted": len(targets),
		"skipped":   skipped,
		"task_id":   taskID,
	})
	result["task_id"] = taskID
	a.json(w, http.StatusAccepted, result)
}

// RetryAudio accepts a bulk narration regeneration request and queues
// it as an audio_retry batch task.
func (a *App) RetryAudio(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req retryAudioRequest
	if err := decodeBody(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	scenes, ok := a.loadJobScenes(w, r, jobID)
	if !ok {
		return
	}

	selected, _ := selectScenes(scenes, req.SceneIDs)
	targets := make([]string, 0, len(selected))
	for _, sc := range selected {
		targets = append(targets, sc.ID)
	}
	if len(targets) == 0 {
		a.json(w, http.StatusAccepted, map[string]any{
			"accepted": true,
			"message":  "no scenes to regenerate",
		})
		return
	}

	task := &domain.BatchTask{
		JobID:     jobID,
		Kind:      domain.TaskKindAudioRetry,
		SceneIDs:  targets,
		Force:     req.Force,
		Attempted: len(targets),
	}
	taskID, err := a.Tasks.Enqueue(r.Context(), task)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("enqueue audio retry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue retry")
		return
	}
	a.appendEvent(r.Context(), jobID, domain.EventLevelInfo, "audio retry accepted", map[string]any{
		"scenes":  len(targets),
		"force":   req.Force,
		"task_id": taskID,
	})
	a.json(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"message":  "audio regeneration queued",
		"task_id":  taskID,
	})
}

// loadJobScenes resolves the job then its scenes, writing the error
// response itself when either step fails.
func (a *App) loadJobScenes(w http.ResponseWriter, r *http.Request, jobID string) ([]domain.Scene, bool) {
	if _, err := a.Jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return nil, false
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return nil, false
	}
	scenes, err := a.Scenes.ListByJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load scenes")
		return nil, false
	}
	return scenes, true
}

// selectScenes filters the job's scenes down to the requested ids; an
// empty request selects all. Requested ids that match no scene count
// as skipped.
func selectScenes(scenes []domain.Scene, requested []string) ([]domain.Scene, int) {
	if len(requested) == 0 {
		return scenes, 0
	}
	byID := make(map[string]domain.Scene, len(scenes))
	for _, sc := range scenes {
		byID[sc.ID] = sc
	}
	var selected []domain.Scene
	skipped := 0
	for _, id := range requested {
		sc, ok := byID[id]
		if !ok {
			skipped++
			continue
		}
		selected = append(selected, sc)
	}
	return selected, skipped
}
