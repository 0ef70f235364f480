package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Hard ceilings for the batch continuation machinery. Environment
// overrides are clamped to these regardless of what operators set.
const (
	MaxRetryAttempts = 5
	MaxBatchBudget   = 110 * time.Second
	MaxBatchDepth    = 30
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int

	// ServiceToken is the privileged credential: it guards the retry,
	// restart and delete endpoints and authorizes batch continuation
	// enqueues. APIAuthToken optionally guards the read surface; empty
	// leaves it open.
	ServiceToken string
	APIAuthToken string

	StorageDriver   string
	StorageDir      string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string

	TextProvider     string
	ImageProvider    string
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiTextModels []string
	GeminiImageModel string
	GeminiTTSModel   string
	GeminiTTSVoice   string
	QwenAPIKey       string
	QwenBaseURL      string
	QwenImageModel   string
	ImageSizes       []string
	OpenAIAPIKey     string
	OpenAIModel      string
	SpeechProvider   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	ElevenLabsURL    string

	TextTimeout      time.Duration
	ImageTimeout     time.Duration
	SpeechTimeout    time.Duration
	RetryAttempts    int
	RetryBackoffBase time.Duration

	ClaimStaleAfter   time.Duration
	BatchBudget       time.Duration
	BatchMaxDepth     int
	SpeechConcurrency int
	WorkerPoolSize    int
	WorkerPollEvery   time.Duration

	GeoIPDBPath     string
	DefaultLanguage string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),

		ServiceToken: os.Getenv("SERVICE_TOKEN"),
		APIAuthToken: os.Getenv("API_AUTH_TOKEN"),

		StorageDriver:   getEnv("STORAGE_DRIVER", "fs"),
		StorageDir:      getEnv("STORAGE_DIR", "data/assets"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		TextProvider:     getEnv("TEXT_PROVIDER", "gemini"),
		ImageProvider:    getEnv("IMAGE_PROVIDER", "gemini"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModels: getEnvList("GEMINI_TEXT_MODELS", []string{"gemini-2.0-flash", "gemini-1.5-flash"}),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GeminiTTSModel:   getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:   getEnv("GEMINI_TTS_VOICE", "Kore"),
		QwenAPIKey:       os.Getenv("QWEN_API_KEY"),
		QwenBaseURL:      getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenImageModel:   getEnv("QWEN_IMAGE_MODEL", "qwen-image-plus"),
		ImageSizes:       getEnvList("IMAGE_SIZES", []string{"1024x1024", "896x1280", "1280x896"}),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SpeechProvider:   getEnv("SPEECH_PROVIDER", "gemini"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsURL:    getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		TextTimeout:      getEnvDuration("TEXT_TIMEOUT", 120*time.Second),
		ImageTimeout:     getEnvDuration("IMAGE_TIMEOUT", 150*time.Second),
		SpeechTimeout:    getEnvDuration("SPEECH_TIMEOUT", 60*time.Second),
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 2),
		RetryBackoffBase: getEnvDuration("RETRY_BACKOFF_BASE", 2*time.Second),

		ClaimStaleAfter:   getEnvDuration("CLAIM_STALE_AFTER", 3*time.Minute),
		BatchBudget:       getEnvDuration("BATCH_BUDGET", 50*time.Second),
		BatchMaxDepth:     getEnvInt("BATCH_MAX_DEPTH", 10),
		SpeechConcurrency: getEnvInt("SPEECH_CONCURRENCY", 4),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 4),
		WorkerPollEvery:   getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),

		GeoIPDBPath:     os.Getenv("GEOIP_DB_PATH"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryAttempts > MaxRetryAttempts {
		cfg.RetryAttempts = MaxRetryAttempts
	}
	if cfg.BatchBudget > MaxBatchBudget {
		cfg.BatchBudget = MaxBatchBudget
	}
	if cfg.BatchMaxDepth > MaxBatchDepth {
		cfg.BatchMaxDepth = MaxBatchDepth
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
