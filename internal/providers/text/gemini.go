package text

import (
	"context"
	"fmt"
)

type geminiJSONClient interface {
	GenerateJSON(ctx context.Context, prompt, schemaHint string) ([]byte, error)
}

// GeminiGenerator adapts the genai client to the Generator contract.
// Model fallback and retry live in the client itself.
type GeminiGenerator struct {
	client geminiJSONClient
}

func NewGeminiGenerator(client geminiJSONClient) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) GenerateJSON(ctx context.Context, prompt, schemaHint string) ([]byte, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gemini text generator not configured")
	}
	return g.client.GenerateJSON(ctx, prompt, schemaHint)
}

func (g *GeminiGenerator) Name() string {
	return "gemini"
}

var _ Generator = (*GeminiGenerator)(nil)
