package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scenecast/internal/http/handlers"
	"scenecast/internal/http/httpapi"
	"scenecast/internal/imagegen"
	"scenecast/internal/infra"
	"scenecast/internal/infra/credentials"
	"scenecast/internal/infra/geoip"
	"scenecast/internal/middleware"
	"scenecast/internal/providers/genai"
	"scenecast/internal/providers/image"
	"scenecast/internal/providers/qwen"
	"scenecast/internal/sceneclaim"
	"scenecast/internal/storage"
	"scenecast/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := store.NewJobStore(runner)
	scenes := store.NewSceneStore(runner)
	assets := store.NewAssetStore(runner)
	events := store.NewEventStore(runner)
	tasks := store.NewTaskStore(runner)

	files, err := newObjectStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	credStore := credentials.NewStore(runner)
	geminiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if geminiKey == "" {
		if stored, err := credStore.GeminiAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to load gemini api key from store")
		} else {
			geminiKey = stored
		}
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:        geminiKey,
		BaseURL:       cfg.GeminiBaseURL,
		TextModels:    cfg.GeminiTextModels,
		ImageModel:    cfg.GeminiImageModel,
		ImageSizes:    cfg.ImageSizes,
		TTSModel:      cfg.GeminiTTSModel,
		TTSVoice:      cfg.GeminiTTSVoice,
		TextTimeout:   cfg.TextTimeout,
		ImageTimeout:  cfg.ImageTimeout,
		SpeechTimeout: cfg.SpeechTimeout,
		Attempts:      cfg.RetryAttempts,
		BackoffBase:   cfg.RetryBackoffBase,
		HTTPClient:    &http.Client{Timeout: 60 * time.Second},
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini client")
	}
	if geminiKey == "" {
		logger.Warn().Msg("gemini api key missing, scene images will use synthetic placeholders")
	}

	renderer := newImageRenderer(ctx, cfg, logger, geminiClient, credStore)
	claims := sceneclaim.NewManager(scenes, cfg.ClaimStaleAfter, logger)
	sizeHint := ""
	if len(cfg.ImageSizes) > 0 {
		sizeHint = cfg.ImageSizes[0]
	}
	imageFlow := imagegen.NewService(claims, jobs, assets, events, renderer, files, sizeHint, logger)

	var lookup middleware.CountryLookup
	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country detection falls back to headers")
	} else if geo != nil {
		lookup = geo.CountryCode
		defer geo.Close()
	}

	app := &handlers.App{
		Jobs:      jobs,
		Scenes:    scenes,
		Assets:    assets,
		Events:    events,
		Tasks:     tasks,
		Images:    imageFlow,
		Files:     files,
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newImageRenderer(ctx context.Context, cfg *infra.Config, logger infra.Logger, gemini *genai.Client, creds *credentials.Store) image.Generator {
	if cfg.ImageProvider == "qwen" {
		key := strings.TrimSpace(cfg.QwenAPIKey)
		if key == "" {
			if stored, err := creds.QwenAPIKey(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to load qwen api key from store")
			} else {
				key = stored
			}
		}
		client, err := qwen.NewClient(qwen.Options{
			APIKey:         key,
			BaseURL:        cfg.QwenBaseURL,
			Model:          cfg.QwenImageModel,
			RequestTimeout: cfg.ImageTimeout,
			Logger:         &logger,
		})
		if err == nil {
			if key == "" {
				logger.Warn().Msg("qwen api key missing, scene images will use synthetic placeholders")
			}
			return image.NewQwenGenerator(client, image.NewSynthetic())
		}
		logger.Warn().Err(err).Msg("qwen provider unavailable, falling back to gemini")
	}
	return image.NewGeminiGenerator(gemini, image.NewSynthetic())
}

func newObjectStore(cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	return storage.NewFileStore(cfg.StorageDir, cfg.StorageBaseURL)
}
