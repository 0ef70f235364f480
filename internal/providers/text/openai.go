package text

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIOptions configures the OpenAI-backed text generator.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Attempts    int
	BackoffBase time.Duration
}

// OpenAIGenerator produces JSON-mode chat completions. It follows the
// same failure policy as the Gemini path: per-attempt timeout, bounded
// linear-backoff retry of rate-limit and server errors, everything else
// final.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	attempts    int
	backoffBase time.Duration
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key not set")
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 2
	}
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(option.WithAPIKey(opts.APIKey)),
		model:       model,
		timeout:     timeout,
		attempts:    attempts,
		backoffBase: backoff,
	}, nil
}

func (g *OpenAIGenerator) Name() string {
	return "openai:" + g.model
}

func (g *OpenAIGenerator) GenerateJSON(ctx context.Context, prompt, schemaHint string) ([]byte, error) {
	input := prompt
	if hint := strings.TrimSpace(schemaHint); hint != "" {
		input += "\n\nRespond with a single JSON object matching this shape:\n" + hint
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(input)},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		completion, err := g.client.Chat.Completions.New(callCtx, params)
		cancel()
		if err == nil {
			if len(completion.Choices) == 0 {
				return nil, fmt.Errorf("openai returned no choices")
			}
			return []byte(completion.Choices[0].Message.Content), nil
		}
		lastErr = err
		if !isRetryableOpenAIError(err) || attempt == g.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(time.Duration(attempt) * g.backoffBase):
		}
	}
	return nil, fmt.Errorf("openai completion failed: %w", lastErr)
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode >= http.StatusInternalServerError
	}
	return errors.Is(err, context.DeadlineExceeded)
}

var _ Generator = (*OpenAIGenerator)(nil)
