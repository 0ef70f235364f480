package image

import "context"

// Request describes a normalized request passed to any image provider.
type Request struct {
	Prompt   string
	SizeHint string
	Seed     string
}

// Asset represents a generated image ready for upload.
type Asset struct {
	Data []byte
	MIME string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Asset, error)
	Name() string
}
