package common

import (
	"context"
	"time"
)

// CacheInterface is a byte-oriented cache. Callers own serialization.
type CacheInterface interface {
	// Set stores value under key for duration
	Set(ctx context.Context, key string, value []byte, duration time.Duration)

	// Get returns the value and true if found
	Get(ctx context.Context, key string) ([]byte, bool)

	// Delete removes key
	Delete(ctx context.Context, key string)

	// GetOrSet returns the cached value, or loads, stores and returns it
	GetOrSet(ctx context.Context, key string, duration time.Duration, loader func() ([]byte, error)) ([]byte, error)

	// Close closes any underlying connections
	Close() error
}
