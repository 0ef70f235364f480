package genai

import (
	"context"
	"fmt"
)

// GenerateSpeech synthesizes narration audio for the text, retrying
// transient failures under the speech timeout.
func (c *Client) GenerateSpeech(ctx context.Context, text string) (Blob, error) {
	cfg := &geminiGenerationConfig{
		ResponseModalities: []string{"AUDIO"},
	}
	if c.ttsVoice != "" {
		cfg.SpeechConfig = &geminiSpeechConfig{
			VoiceConfig: &geminiVoiceConfig{
				PrebuiltVoiceConfig: &geminiPrebuiltVoice{VoiceName: c.ttsVoice},
			},
		}
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: text}},
		}},
		GenerationConfig: cfg,
	}

	var blob Blob
	err := c.withRetry(ctx, c.speechTimeout, "speech", func(ctx context.Context) error {
		var response geminiGenerateContentResponse
		if err := c.invoke(ctx, c.ttsModel, payload, &response); err != nil {
			return err
		}
		for _, candidate := range response.Candidates {
			for _, part := range candidate.Content.Parts {
				decoded, err := c.decodeBinaryPart(ctx, part)
				if err != nil {
					return err
				}
				if len(decoded.Data) > 0 {
					if decoded.MIME == "" {
						decoded.MIME = "audio/wav"
					}
					blob = decoded
					return nil
				}
			}
		}
		return fmt.Errorf("gemini returned no audio content")
	})
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}
