package storage

import "context"

// Store persists generated assets and resolves their public URLs.
type Store interface {
	// Write persists data at the given relative key and returns the
	// canonicalized storage key.
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Read returns the stored object's bytes.
	Read(ctx context.Context, key string) ([]byte, error)
	// URL resolves a storage key to the address clients download it from.
	URL(key string) string
	// Remove deletes the object at key. Missing objects are not an error.
	Remove(ctx context.Context, key string) error
}
