package text

import "context"

// Generator produces structured JSON for a prompt. Implementations own
// their transport, timeout and retry behavior; callers treat failures
// as final.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, schemaHint string) ([]byte, error)
	Name() string
}
