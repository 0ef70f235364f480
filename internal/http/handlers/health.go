package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if !a.StartedAt.IsZero() {
		body["uptime_sec"] = int(time.Since(a.StartedAt).Seconds())
	}
	a.json(w, http.StatusOK, body)
}
