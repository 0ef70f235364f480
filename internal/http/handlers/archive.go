package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"scenecast/internal/domain"
	"scenecast/pkg/zip"
)

// ArchiveJob streams a zip of every stored artifact the job produced.
// Entries mirror the storage layout under the job prefix; unreadable
// objects are skipped so a partially-cleaned job still archives.
func (a *App) ArchiveJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	assets, err := a.Assets.ListByJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}

	prefix := "jobs/" + jobID + "/"
	var entries []zip.Asset
	for _, asset := range assets {
		if asset.StorageKey == "" {
			continue
		}
		data, err := a.Files.Read(r.Context(), asset.StorageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", asset.StorageKey).Msg("archive: read object failed")
			continue
		}
		var meta struct {
			MIME string `json:"mime"`
		}
		_ = json.Unmarshal(asset.Metadata, &meta)
		entries = append(entries, zip.Asset{
			Filename: strings.TrimPrefix(asset.StorageKey, prefix),
			MIME:     meta.MIME,
			Data:     data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no archivable assets")
		return
	}

	archive := zip.ArchiveAssets(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
