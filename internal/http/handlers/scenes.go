package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scenecast/internal/domain"
	"scenecast/internal/imagegen"
)

type generateImageRequest struct {
	Force bool `json:"force"`
}

// GenerateSceneImage runs one scene's image generation synchronously
// under the claim protocol. A lost claim race answers 202 in_progress;
// everything else answers 200 with the outcome.
func (a *App) GenerateSceneImage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	sceneID := chi.URLParam(r, "scene_id")

	var req generateImageRequest
	if err := decodeBody(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	scene, err := a.Scenes.Get(r.Context(), sceneID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "scene not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load scene")
		return
	}

	res, err := a.Images.Generate(r.Context(), *job, *scene, req.Force)
	if err != nil {
		a.Logger.Error().Err(err).Str("scene_id", sceneID).Msg("scene image generation errored")
		a.error(w, http.StatusInternalServerError, "internal", "image generation failed")
		return
	}

	body := map[string]any{"status": res.Outcome}
	if res.ImageURL != "" {
		body["image_url"] = res.ImageURL
	}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.Outcome == imagegen.OutcomeInProgress {
		a.json(w, http.StatusAccepted, body)
		return
	}
	a.json(w, http.StatusOK, body)
}
