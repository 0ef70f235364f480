package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	goimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// Synthetic renders deterministic placeholder art so the full pipeline can run
// without any remote credentials. The same prompt and seed always produce the
// same bytes.
type Synthetic struct{}

// NewSynthetic returns a keyless placeholder generator.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Generate fulfils the Generator interface.
func (s *Synthetic) Generate(ctx context.Context, req Request) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := parseSize(req.SizeHint)
	seed := seedDigest(req.Seed, req.Prompt)
	data := renderSyntheticImage(width, height, seed)
	if len(data) == 0 {
		return nil, fmt.Errorf("synthetic renderer produced no image")
	}
	return &Asset{Data: data, MIME: "image/png"}, nil
}

func (s *Synthetic) Name() string {
	return "synthetic"
}

var _ Generator = (*Synthetic)(nil)

func parseSize(hint string) (int, int) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(hint)), "x")
	if len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 1024, 1024
}

func renderSyntheticImage(width, height int, seed string) []byte {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &goimage.Uniform{base}, goimage.Point{}, draw.Src)

	stripeHeight := maxInt(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := goimage.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &goimage.Uniform{accent}, goimage.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for i := 0; i < maxInt(width, height); i += maxInt(16, width/32) {
		x := i
		for y := 0; y < height; y++ {
			xx := x + y
			if xx >= width {
				break
			}
			img.Set(xx, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	r := mustParseHexByte(segment[0:2])
	g := mustParseHexByte(segment[2:4])
	b := mustParseHexByte(segment[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func seedDigest(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
