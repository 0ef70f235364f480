package genai

import (
	"context"
	"fmt"
	"strings"
)

// GenerateJSON asks for structured output and returns the raw JSON
// bytes of the first candidate. The configured model list is walked in
// order; only the access-denied/not-found class advances to the next
// model, every other failure (after transient retries) is final.
func (c *Client) GenerateJSON(ctx context.Context, prompt, schemaHint string) ([]byte, error) {
	var lastErr error
	for i, model := range c.textModels {
		raw, err := c.generateJSONWithModel(ctx, model, prompt, schemaHint)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !isModelUnavailable(err) {
			return nil, err
		}
		if i < len(c.textModels)-1 {
			c.logger.Warn().
				Err(err).
				Str("model", model).
				Str("next", c.textModels[i+1]).
				Msg("genai: model unavailable, trying next candidate")
		}
	}
	return nil, fmt.Errorf("all text models exhausted: %w", lastErr)
}

func (c *Client) generateJSONWithModel(ctx context.Context, model, prompt, schemaHint string) ([]byte, error) {
	parts := []geminiPart{{Text: prompt}}
	if hint := strings.TrimSpace(schemaHint); hint != "" {
		parts = append(parts, geminiPart{Text: "Respond with a single JSON object matching this shape:\n" + hint})
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	err := c.withRetry(ctx, c.textTimeout, "text:"+model, func(ctx context.Context) error {
		response = geminiGenerateContentResponse{}
		return c.invoke(ctx, model, payload, &response)
	})
	if err != nil {
		return nil, err
	}

	text := collectText(response)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini returned no text content")
	}
	return []byte(text), nil
}

func collectText(resp geminiGenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
