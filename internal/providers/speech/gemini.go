package speech

import (
	"context"
	"fmt"
	"strings"

	"scenecast/internal/providers/genai"
)

type geminiSpeechClient interface {
	GenerateSpeech(ctx context.Context, text string) (genai.Blob, error)
	Configured() bool
}

// GeminiSpeaker narrates scene text through the Gemini TTS model and falls
// back to another generator when no API key is configured.
type GeminiSpeaker struct {
	client   geminiSpeechClient
	fallback Generator
}

// NewGeminiSpeaker wires a Gemini client with an optional keyless fallback.
func NewGeminiSpeaker(client geminiSpeechClient, fallback Generator) *GeminiSpeaker {
	return &GeminiSpeaker{client: client, fallback: fallback}
}

// Synthesize fulfils the Generator interface.
func (g *GeminiSpeaker) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if g == nil {
		return nil, fmt.Errorf("gemini speaker not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("narration text is empty")
	}
	if g.client == nil || !g.client.Configured() {
		if g.fallback != nil {
			return g.fallback.Synthesize(ctx, text)
		}
		return nil, fmt.Errorf("gemini speaker missing credentials")
	}
	blob, err := g.client.GenerateSpeech(ctx, text)
	if err != nil {
		return nil, err
	}
	mime := strings.TrimSpace(blob.MIME)
	if mime == "" {
		mime = "audio/wav"
	}
	return &Clip{Data: blob.Data, MIME: mime}, nil
}

func (g *GeminiSpeaker) Name() string {
	if g == nil || g.client == nil || !g.client.Configured() {
		if g.fallback != nil {
			return g.fallback.Name()
		}
		return "gemini-tts"
	}
	return "gemini-tts"
}

var _ Generator = (*GeminiSpeaker)(nil)
