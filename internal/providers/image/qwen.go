package image

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"scenecast/internal/providers/qwen"
)

type qwenImageClient interface {
	GenerateImage(ctx context.Context, req qwen.ImageRequest) (*qwen.ImageAsset, error)
	HasCredentials() bool
}

// sceneNegativePrompt keeps renders free of baked-in text; captions are
// composited later from the script, not by the model.
const sceneNegativePrompt = "embedded text, captions, watermarks, logos"

// QwenGenerator renders scene art through the DashScope Qwen image model.
// Like the Gemini path, the fallback only covers the keyless case; remote
// failures surface to the caller so the scene claim records them.
type QwenGenerator struct {
	client   qwenImageClient
	fallback Generator
}

// NewQwenGenerator wires a Qwen client with an optional keyless fallback.
func NewQwenGenerator(client qwenImageClient, fallback Generator) *QwenGenerator {
	return &QwenGenerator{client: client, fallback: fallback}
}

// Generate fulfils the Generator interface.
func (g *QwenGenerator) Generate(ctx context.Context, req Request) (*Asset, error) {
	if g == nil {
		return nil, fmt.Errorf("qwen image generator not configured")
	}
	if g.client == nil || !g.client.HasCredentials() {
		if g.fallback != nil {
			return g.fallback.Generate(ctx, req)
		}
		return nil, fmt.Errorf("qwen image generator missing credentials")
	}
	asset, err := g.client.GenerateImage(ctx, qwen.ImageRequest{
		Prompt:         strings.TrimSpace(req.Prompt),
		NegativePrompt: sceneNegativePrompt,
		Size:           qwenSize(req.SizeHint),
		Seed:           seedNumber(req.Seed),
	})
	if err != nil {
		return nil, err
	}
	return &Asset{Data: asset.Data, MIME: normalizeMIME(asset.MIME)}, nil
}

func (g *QwenGenerator) Name() string {
	if g == nil || g.client == nil || !g.client.HasCredentials() {
		if g.fallback != nil {
			return g.fallback.Name()
		}
		return "qwen"
	}
	return "qwen"
}

var _ Generator = (*QwenGenerator)(nil)

// qwenSize converts the "WxH" hint into DashScope's "W*H" form. An
// unparseable hint is dropped so the client default applies.
func qwenSize(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	parts := strings.Split(hint, "x")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "*" + parts[1]
}

// seedNumber folds the scene id into a stable positive seed so a retried
// scene reproduces the same composition.
func seedNumber(seed string) int {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(seed))
	return int(h.Sum32()&0x7fffffff) + 1
}
