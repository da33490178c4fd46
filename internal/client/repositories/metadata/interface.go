package metadata

import "context"

// Repository is the key-value store behind the session cache.
type Repository interface {
	// Get returns the value stored under key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes every listed key in one statement. Absent keys are
	// ignored.
	Delete(ctx context.Context, keys ...string) error
}
