package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"

	"scenecast/internal/batch"
	"scenecast/internal/domain"
	"scenecast/internal/imagegen"
	"scenecast/internal/infra"
	"scenecast/internal/infra/credentials"
	"scenecast/internal/pipeline"
	"scenecast/internal/providers/genai"
	"scenecast/internal/providers/image"
	"scenecast/internal/providers/qwen"
	"scenecast/internal/providers/speech"
	"scenecast/internal/providers/text"
	"scenecast/internal/sceneclaim"
	"scenecast/internal/storage"
	"scenecast/internal/store"
)

type worker struct {
	ctx       context.Context
	jobs      *store.JobStore
	tasks     *store.TaskStore
	pipeline  *pipeline.Runner
	batch     *batch.Runner
	pool      *ants.Pool
	pollEvery time.Duration
	logger    infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := store.NewJobStore(runner)
	scenes := store.NewSceneStore(runner)
	assets := store.NewAssetStore(runner)
	events := store.NewEventStore(runner)
	tasks := store.NewTaskStore(runner)
	credStore := credentials.NewStore(runner)

	files, err := newObjectStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	geminiKey := resolveKey(ctx, logger, cfg.GeminiAPIKey, credStore.GeminiAPIKey)
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
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if geminiKey == "" {
		logger.Warn().Msg("worker: gemini api key missing, using synthetic asset generation")
	}

	textGen := newTextGenerator(ctx, cfg, logger, geminiClient, credStore)
	speechGen := newSpeechGenerator(ctx, cfg, logger, geminiClient, credStore)
	renderer := newImageRenderer(ctx, cfg, logger, geminiClient, credStore)

	claims := sceneclaim.NewManager(scenes, cfg.ClaimStaleAfter, logger)
	sizeHint := ""
	if len(cfg.ImageSizes) > 0 {
		sizeHint = cfg.ImageSizes[0]
	}
	imageFlow := imagegen.NewService(claims, jobs, assets, events, renderer, files, sizeHint, logger)

	speechPool, err := ants.NewPool(cfg.SpeechConcurrency)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to create speech pool")
	}
	defer speechPool.Release()

	workPool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to create worker pool")
	}

	w := &worker{
		ctx:       ctx,
		jobs:      jobs,
		tasks:     tasks,
		pipeline:  pipeline.NewRunner(jobs, scenes, assets, events, textGen, speechGen, files, speechPool, logger),
		batch: batch.NewRunner(jobs, scenes, assets, tasks, events, imageFlow, speechGen, files, batch.Config{
			Budget:       cfg.BatchBudget,
			MaxDepth:     cfg.BatchMaxDepth,
			ServiceToken: cfg.ServiceToken,
		}, logger),
		pool:      workPool,
		pollEvery: cfg.WorkerPollEvery,
		logger:    logger,
	}

	if err := w.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}

	if err := workPool.ReleaseTimeout(30 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("worker: pool drain timed out")
	}
	logger.Info().Msg("worker: stopped")
}

// Run polls for queued jobs and batch tasks and hands them to the pool.
// Submit blocks when every pool worker is busy, which throttles claims
// to the pool's capacity.
func (w *worker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		busy := false

		job, err := w.jobs.ClaimNext(w.ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: failed to claim job")
		} else if job != nil {
			busy = true
			w.submit(func() { w.runJob(job) })
		}

		task, err := w.tasks.ClaimNext(w.ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: failed to claim task")
		} else if task != nil {
			busy = true
			w.submit(func() { w.runTask(task) })
		}

		if !busy {
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(w.pollEvery):
			}
		}
	}
}

func (w *worker) submit(fn func()) {
	if err := w.pool.Submit(fn); err != nil {
		w.logger.Error().Err(err).Msg("worker: submit failed")
	}
}

func (w *worker) runJob(job *domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Str("trace_id", job.TraceID).Msg("worker: picked job")
	if err := w.pipeline.Run(w.ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: pipeline failed")
	}
}

func (w *worker) runTask(task *domain.BatchTask) {
	w.logger.Info().Str("task_id", task.ID).Str("job_id", task.JobID).Str("kind", string(task.Kind)).Msg("worker: picked task")
	if err := w.batch.Run(w.ctx, task); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("worker: batch task failed")
	}
}

// resolveKey prefers the environment value and falls back to the
// integration_tokens table.
func resolveKey(ctx context.Context, logger infra.Logger, envValue string, fetch func(context.Context) (string, error)) string {
	key := strings.TrimSpace(envValue)
	if key != "" {
		return key
	}
	stored, err := fetch(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load api key from store")
		return ""
	}
	return stored
}

func newTextGenerator(ctx context.Context, cfg *infra.Config, logger infra.Logger, gemini *genai.Client, creds *credentials.Store) text.Generator {
	if cfg.TextProvider == "openai" {
		key := resolveKey(ctx, logger, cfg.OpenAIAPIKey, creds.OpenAIAPIKey)
		if key != "" {
			gen, err := text.NewOpenAIGenerator(text.OpenAIOptions{
				APIKey:      key,
				Model:       cfg.OpenAIModel,
				Timeout:     cfg.TextTimeout,
				Attempts:    cfg.RetryAttempts,
				BackoffBase: cfg.RetryBackoffBase,
			})
			if err == nil {
				return gen
			}
			logger.Warn().Err(err).Msg("worker: openai text provider unavailable, falling back to gemini")
		} else {
			logger.Warn().Msg("worker: openai api key missing, falling back to gemini")
		}
	}
	return text.NewGeminiGenerator(gemini)
}

func newImageRenderer(ctx context.Context, cfg *infra.Config, logger infra.Logger, gemini *genai.Client, creds *credentials.Store) image.Generator {
	if cfg.ImageProvider == "qwen" {
		key := resolveKey(ctx, logger, cfg.QwenAPIKey, creds.QwenAPIKey)
		client, err := qwen.NewClient(qwen.Options{
			APIKey:         key,
			BaseURL:        cfg.QwenBaseURL,
			Model:          cfg.QwenImageModel,
			RequestTimeout: cfg.ImageTimeout,
			Logger:         &logger,
		})
		if err == nil {
			if key == "" {
				logger.Warn().Msg("worker: qwen api key missing, using synthetic asset generation")
			}
			return image.NewQwenGenerator(client, image.NewSynthetic())
		}
		logger.Warn().Err(err).Msg("worker: qwen provider unavailable, falling back to gemini")
	}
	return image.NewGeminiGenerator(gemini, image.NewSynthetic())
}

func newSpeechGenerator(ctx context.Context, cfg *infra.Config, logger infra.Logger, gemini *genai.Client, creds *credentials.Store) speech.Generator {
	switch cfg.SpeechProvider {
	case "elevenlabs":
		key := resolveKey(ctx, logger, cfg.ElevenLabsAPIKey, creds.ElevenLabsAPIKey)
		if key != "" {
			gen, err := speech.NewElevenLabsSpeaker(speech.ElevenLabsOptions{
				APIKey:      key,
				BaseURL:     cfg.ElevenLabsURL,
				VoiceID:     cfg.ElevenLabsVoice,
				Timeout:     cfg.SpeechTimeout,
				Attempts:    cfg.RetryAttempts,
				BackoffBase: cfg.RetryBackoffBase,
				Logger:      &logger,
			})
			if err == nil {
				return gen
			}
			logger.Warn().Err(err).Msg("worker: elevenlabs provider unavailable, falling back to gemini tts")
		} else {
			logger.Warn().Msg("worker: elevenlabs api key missing, falling back to gemini tts")
		}
	case "synthetic":
		return speech.NewSynthetic()
	}
	return speech.NewGeminiSpeaker(gemini, speech.NewSynthetic())
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
