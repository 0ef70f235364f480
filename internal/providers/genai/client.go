package genai

import (
	"bytes"
	"context"
	"encoding/base64"
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

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey        string
	BaseURL       string
	TextModels    []string
	ImageModel    string
	ImageSizes    []string
	TTSModel      string
	TTSVoice      string
	TextTimeout   time.Duration
	ImageTimeout  time.Duration
	SpeechTimeout time.Duration
	Attempts      int
	BackoffBase   time.Duration
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Client is a lightweight facade over the Gemini generateContent API
// carrying the service's full failure policy: per-media timeouts,
// linear-backoff retry of transient errors, model fallback for text and
// size fallback for images, and normalization of inline or fetch-after
// binary responses to raw bytes.
type Client struct {
	apiKey        string
	baseURL       string
	textModels    []string
	imageModel    string
	imageSizes    []string
	ttsModel      string
	ttsVoice      string
	textTimeout   time.Duration
	imageTimeout  time.Duration
	speechTimeout time.Duration
	attempts      int
	backoffBase   time.Duration
	httpClient    *http.Client
	logger        *infra.Logger
}

// Blob is a normalized binary payload returned by image/speech calls.
type Blob struct {
	Data []byte
	MIME string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int                 `json:"candidateCount,omitempty"`
	ResponseMimeType   string              `json:"responseMimeType,omitempty"`
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	SpeechConfig       *geminiSpeechConfig `json:"speechConfig,omitempty"`
}

type geminiSpeechConfig struct {
	VoiceConfig *geminiVoiceConfig `json:"voiceConfig,omitempty"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig *geminiPrebuiltVoice `json:"prebuiltVoiceConfig,omitempty"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName,omitempty"`
}

type geminiTool struct {
	ImageGeneration *geminiImageTool `json:"image_generation,omitempty"`
}

type geminiImageTool struct{}

type geminiToolConfig struct {
	ImageGenerationConfig *geminiImageGenerationConfig `json:"image_generation_config,omitempty"`
}

type geminiImageGenerationConfig struct {
	NumberOfImages int    `json:"number_of_images,omitempty"`
	ImageSize      string `json:"image_size,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	Tools            []geminiTool            `json:"tools,omitempty"`
	ToolConfig       *geminiToolConfig       `json:"tool_config,omitempty"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	textModels := opts.TextModels
	if len(textModels) == 0 {
		textModels = []string{"gemini-2.0-flash"}
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "gemini-2.0-flash-preview-image-generation"
	}
	imageSizes := opts.ImageSizes
	if len(imageSizes) == 0 {
		imageSizes = []string{"1024x1024"}
	}
	ttsModel := opts.TTSModel
	if ttsModel == "" {
		ttsModel = "gemini-2.5-flash-preview-tts"
	}

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 2
	}
	if attempts > infra.MaxRetryAttempts {
		attempts = infra.MaxRetryAttempts
	}
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		textModels:    textModels,
		imageModel:    imageModel,
		imageSizes:    imageSizes,
		ttsModel:      ttsModel,
		ttsVoice:      opts.TTSVoice,
		textTimeout:   orDefault(opts.TextTimeout, 120*time.Second),
		imageTimeout:  orDefault(opts.ImageTimeout, 150*time.Second),
		speechTimeout: orDefault(opts.SpeechTimeout, 60*time.Second),
		attempts:      attempts,
		backoffBase:   backoff,
		httpClient:    client,
		logger:        logger,
	}, nil
}

// Configured reports whether the client has a credential to call the
// real API with.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type apiError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini status %d", e.StatusCode)
}

// isTransient covers the retry-worthy failure class: timeouts,
// rate limiting and server errors.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// isModelUnavailable is the access-denied/not-found class that moves
// text generation to the next model candidate.
func isModelUnavailable(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusForbidden ||
		apiErr.StatusCode == http.StatusNotFound ||
		apiErr.Status == "PERMISSION_DENIED" ||
		apiErr.Status == "NOT_FOUND"
}

// isBadParameter is the invalid-argument class that moves image
// generation to the next size candidate without retrying.
func isBadParameter(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest || apiErr.Status == "INVALID_ARGUMENT"
}

// withRetry runs fn under a per-attempt timeout, retrying transient
// failures with linear backoff (base x attempt number) up to the
// configured attempt count. The last observed error surfaces.
func (c *Client) withRetry(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) || attempt == c.attempts {
			break
		}
		delay := time.Duration(attempt) * c.backoffBase
		c.logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("genai: transient failure, backing off")
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (c *Client) invoke(ctx context.Context, model string, payload geminiGenerateContentRequest, out *geminiGenerateContentResponse) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		var decoded geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
			apiErr.Status = decoded.Error.Status
			apiErr.Message = decoded.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// decodeBinaryPart normalizes a response part to raw bytes: inline
// base64 data decodes directly, while file references are fetched from
// their URI under the caller's deadline.
func (c *Client) decodeBinaryPart(ctx context.Context, part geminiPart) (Blob, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return Blob{}, fmt.Errorf("decode inline data: %w", err)
		}
		return Blob{Data: data, MIME: part.InlineData.MimeType}, nil
	}

	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Data: data, MIME: firstNonEmpty(part.FileData.MimeType, mime)}, nil
	}

	return Blob{}, nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", &apiError{StatusCode: resp.StatusCode, Message: "file download failed"}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
