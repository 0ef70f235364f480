package image

import (
	"context"
	"fmt"
	"strings"

	"scenecast/internal/providers/genai"
)

type geminiImageClient interface {
	GenerateImage(ctx context.Context, prompt, sizeHint string) (genai.Blob, error)
	Configured() bool
}

// GeminiGenerator renders scene art through the Gemini image model and falls
// back to another generator (e.g. the synthetic renderer) when no API key is
// configured. Remote failures are returned to the caller so the scene claim
// can record them; the fallback only covers the keyless case.
type GeminiGenerator struct {
	client   geminiImageClient
	fallback Generator
}

// NewGeminiGenerator wires a Gemini client with an optional keyless fallback.
func NewGeminiGenerator(client geminiImageClient, fallback Generator) *GeminiGenerator {
	return &GeminiGenerator{client: client, fallback: fallback}
}

// Generate fulfils the Generator interface.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Asset, error) {
	if g == nil {
		return nil, fmt.Errorf("gemini image generator not configured")
	}
	if g.client == nil || !g.client.Configured() {
		if g.fallback != nil {
			return g.fallback.Generate(ctx, req)
		}
		return nil, fmt.Errorf("gemini image generator missing credentials")
	}
	blob, err := g.client.GenerateImage(ctx, strings.TrimSpace(req.Prompt), req.SizeHint)
	if err != nil {
		return nil, err
	}
	return &Asset{Data: blob.Data, MIME: normalizeMIME(blob.MIME)}, nil
}

func (g *GeminiGenerator) Name() string {
	if g == nil || g.client == nil || !g.client.Configured() {
		if g.fallback != nil {
			return g.fallback.Name()
		}
		return "gemini"
	}
	return "gemini"
}

var _ Generator = (*GeminiGenerator)(nil)

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return "image/png"
	}
}
