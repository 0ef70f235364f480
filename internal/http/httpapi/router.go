package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scenecast/internal/http/handlers"
	"scenecast/internal/middleware"
)

// NewRouter assembles the API surface. The country lookup may be nil;
// language detection then relies on headers alone.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	cfg := app.Config

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	read := middleware.OptionalBearer(cfg.APIAuthToken, cfg.ServiceToken)
	privileged := middleware.RequireBearer(cfg.ServiceToken)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.With(read, middleware.LanguageDetect(cfg.DefaultLanguage, lookup)).Post("/", app.StartJob)
		r.With(read).Get("/", app.ListJobs)
		r.With(read).Get("/{job_id}", app.GetStatus)
		r.With(read).Get("/{job_id}/archive", app.ArchiveJob)
		r.With(read).Post("/{job_id}/scenes/{scene_id}/image", app.GenerateSceneImage)

		r.With(privileged).Post("/{job_id}/images/retry", app.RetryImages)
		r.With(privileged).Post("/{job_id}/audio/retry", app.RetryAudio)
		r.With(privileged).Post("/{job_id}/restart", app.RestartJob)
		r.With(privileged).Delete("/{job_id}", app.DeleteJob)
	})

	// The filesystem driver builds asset URLs under /static; serve them
	// from this process so dev setups work without a separate CDN.
	if cfg.StorageDriver == "fs" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StorageDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
