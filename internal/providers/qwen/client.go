// Package qwen renders images through the DashScope multimodal
// generation API. DashScope answers with a hosted URL rather than
// inline bytes, so every render is a generation call plus a download.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scenecast/internal/infra"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

const generatePath = "/services/aigc/multimodal-generation/generation"

type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultSize    string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client calls the DashScope API with one model and a default size.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	defaultSize string
	httpClient  *http.Client
	logger      *infra.Logger
}

// ImageRequest is one render: a prompt pair, a "W*H" size and an
// optional deterministic seed.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Seed           int
}

// ImageAsset is the downloaded render.
type ImageAsset struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

type apiRequest struct {
	Model      string    `json:"model"`
	Input      apiInput  `json:"input"`
	Parameters apiParams `json:"parameters"`
}

type apiInput struct {
	Messages []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Text string `json:"text,omitempty"`
}

type apiParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type apiResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-plus"
	}
	size := strings.TrimSpace(opts.DefaultSize)
	if size == "" {
		size = "1328*1328"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		defaultSize: size,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// HasCredentials reports whether the client can call the remote API.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage runs one render and downloads the hosted result.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("qwen: prompt is required")
	}

	params := apiParams{
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		Size:           strings.TrimSpace(req.Size),
	}
	if params.Size == "" {
		params.Size = c.defaultSize
	}
	if req.Seed > 0 {
		seed := req.Seed
		params.Seed = &seed
	}
	payload := apiRequest{
		Model: c.model,
		Input: apiInput{Messages: []apiMessage{{
			Role:    "user",
			Content: []apiContent{{Text: prompt}},
		}}},
		Parameters: params,
	}

	decoded, err := c.generate(ctx, payload)
	if err != nil {
		return nil, err
	}
	hosted := firstImage(decoded)
	if hosted == "" {
		return nil, errors.New("qwen: response carried no image url")
	}

	data, mime, err := c.download(ctx, hosted)
	if err != nil {
		return nil, err
	}
	width, height := decoded.Usage.Width, decoded.Usage.Height
	if width == 0 || height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Int("width", width).
		Int("height", height).
		Msg("qwen: rendered image")
	return &ImageAsset{Data: data, MIME: mime, Width: width, Height: height}, nil
}

func (c *Client) generate(ctx context.Context, payload apiRequest) (apiResponse, error) {
	var decoded apiResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return decoded, fmt.Errorf("qwen: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return decoded, fmt.Errorf("qwen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decoded, fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, fmt.Errorf("qwen: read response: %w", err)
	}

	// DashScope reports faults both as non-2xx statuses and as an
	// in-body code on 200s; both carry the same code/message pair.
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return decoded, fmt.Errorf("qwen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return decoded, fmt.Errorf("qwen: decode response: %w", err)
	}
	if resp.StatusCode >= 300 || decoded.Code != "" {
		if decoded.Message != "" {
			return decoded, fmt.Errorf("qwen: %s (%s)", decoded.Message, decoded.Code)
		}
		return decoded, fmt.Errorf("qwen: status %d", resp.StatusCode)
	}
	return decoded, nil
}

func (c *Client) download(ctx context.Context, hosted string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(hosted))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("qwen: invalid image url: %s", hosted)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("qwen: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

func firstImage(resp apiResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if hosted := strings.TrimSpace(content.Image); hosted != "" {
				return hosted
			}
		}
	}
	return ""
}
