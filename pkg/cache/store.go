package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the backend holds no data for the key.
var ErrNotFound = errors.New("cache entry not found")

// Store is a key-value backend for serialized cache entries. Backends
// may honor the TTL natively (Redis) or ignore it and rely on the
// manager's expiry check (disk).
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the bytes under the key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all stored keys.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}
