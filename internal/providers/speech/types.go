package speech

import "context"

// Clip holds synthesized narration audio ready for upload.
type Clip struct {
	Data []byte
	MIME string
}

// Generator is the contract implemented by all narration providers.
type Generator interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
	Name() string
}
