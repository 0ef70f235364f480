package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scenecast/internal/infra"
)

const (
	defaultElevenLabsURL   = "https://api.elevenlabs.io"
	defaultElevenLabsModel = "eleven_multilingual_v2"
)

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsOptions configures the ElevenLabs narration client.
type ElevenLabsOptions struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
	Attempts        int
	BackoffBase     time.Duration
	HTTPClient      *http.Client
	Logger          *infra.Logger
}

// ElevenLabsSpeaker synthesizes narration through the ElevenLabs
// text-to-speech API.
type ElevenLabsSpeaker struct {
	apiKey          string
	baseURL         string
	voiceID         string
	modelID         string
	stability       float64
	similarityBoost float64
	timeout         time.Duration
	attempts        int
	backoffBase     time.Duration
	httpClient      *http.Client
	logger          infra.Logger
}

// NewElevenLabsSpeaker builds a speaker from options, erroring when the API
// key is absent so callers can fall back to another provider at wiring time.
func NewElevenLabsSpeaker(opts ElevenLabsOptions) (*ElevenLabsSpeaker, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("elevenlabs: api key is required")
	}
	if strings.TrimSpace(opts.VoiceID) == "" {
		return nil, fmt.Errorf("elevenlabs: voice id is required")
	}
	s := &ElevenLabsSpeaker{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         strings.TrimRight(firstNonEmpty(opts.BaseURL, defaultElevenLabsURL), "/"),
		voiceID:         strings.TrimSpace(opts.VoiceID),
		modelID:         firstNonEmpty(opts.ModelID, defaultElevenLabsModel),
		stability:       opts.Stability,
		similarityBoost: opts.SimilarityBoost,
		timeout:         opts.Timeout,
		attempts:        opts.Attempts,
		backoffBase:     opts.BackoffBase,
		httpClient:      opts.HTTPClient,
	}
	if s.stability <= 0 {
		s.stability = 0.5
	}
	if s.similarityBoost <= 0 {
		s.similarityBoost = 0.75
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if s.attempts <= 0 {
		s.attempts = 2
	}
	if s.attempts > infra.MaxRetryAttempts {
		s.attempts = infra.MaxRetryAttempts
	}
	if s.backoffBase <= 0 {
		s.backoffBase = 2 * time.Second
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{}
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = zerolog.New(io.Discard)
	}
	return s, nil
}

// Synthesize fulfils the Generator interface.
func (s *ElevenLabsSpeaker) Synthesize(ctx context.Context, text string) (*Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("narration text is empty")
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		clip, err := s.synthesizeOnce(ctx, text)
		if err == nil {
			return clip, nil
		}
		lastErr = err
		if !isRetryableElevenLabsError(err) || attempt == s.attempts {
			return nil, err
		}
		delay := time.Duration(attempt) * s.backoffBase
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("elevenlabs: retrying synthesis")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *ElevenLabsSpeaker) Name() string {
	return "elevenlabs:" + s.voiceID
}

var _ Generator = (*ElevenLabsSpeaker)(nil)

func (s *ElevenLabsSpeaker) synthesizeOnce(parent context.Context, text string) (*Clip, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, url.PathEscape(s.voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &elevenLabsError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio response")
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &Clip{Data: data, MIME: mime}, nil
}

type elevenLabsError struct {
	StatusCode int
	Message    string
}

func (e *elevenLabsError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("elevenlabs: status %d", e.StatusCode)
	}
	return fmt.Sprintf("elevenlabs: status %d: %s", e.StatusCode, e.Message)
}

func isRetryableElevenLabsError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *elevenLabsError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
