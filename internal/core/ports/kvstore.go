package ports

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a KeyValueStore when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrCapacityExceeded is returned by Set when the store has no room left for the value.
	ErrCapacityExceeded = errors.New("store capacity exceeded")
)

// KeyValueStore is a size-limited, persistent, string-keyed byte store.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value. It returns
	// ErrCapacityExceeded when the write would not fit.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key; absence is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns a snapshot of every stored key.
	Keys(ctx context.Context) ([]string, error)
}
