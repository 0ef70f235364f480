package genai

import (
	"context"
	"fmt"
	"strings"
)

// GenerateImage produces one image for the prompt, iterating the size
// candidate list with sizeHint tried first. An invalid-argument
// rejection abandons only that size; transient errors retry within the
// size before the list advances. Responses are normalized to raw bytes
// whether inline or referenced by URI.
func (c *Client) GenerateImage(ctx context.Context, prompt, sizeHint string) (Blob, error) {
	var lastErr error
	for _, size := range c.candidateSizes(sizeHint) {
		blob, err := c.generateImageWithSize(ctx, size, prompt)
		if err == nil {
			return blob, nil
		}
		lastErr = err
		if !isBadParameter(err) && !isTransient(err) {
			return Blob{}, err
		}
		c.logger.Warn().
			Err(err).
			Str("size", size).
			Msg("genai: image size exhausted, trying next candidate")
	}
	return Blob{}, fmt.Errorf("all image sizes exhausted: %w", lastErr)
}

func (c *Client) generateImageWithSize(ctx context.Context, size, prompt string) (Blob, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		Tools: []geminiTool{{ImageGeneration: &geminiImageTool{}}},
		ToolConfig: &geminiToolConfig{
			ImageGenerationConfig: &geminiImageGenerationConfig{
				NumberOfImages: 1,
				ImageSize:      size,
			},
		},
	}

	var blob Blob
	err := c.withRetry(ctx, c.imageTimeout, "image:"+size, func(ctx context.Context) error {
		var response geminiGenerateContentResponse
		if err := c.invoke(ctx, c.imageModel, payload, &response); err != nil {
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
						decoded.MIME = "image/png"
					}
					blob = decoded
					return nil
				}
			}
		}
		return fmt.Errorf("gemini returned no image content")
	})
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}

// candidateSizes orders the configured sizes with hint first, deduped.
func (c *Client) candidateSizes(hint string) []string {
	hint = strings.TrimSpace(hint)
	sizes := make([]string, 0, len(c.imageSizes)+1)
	if hint != "" {
		sizes = append(sizes, hint)
	}
	for _, s := range c.imageSizes {
		if s != hint {
			sizes = append(sizes, s)
		}
	}
	return sizes
}
