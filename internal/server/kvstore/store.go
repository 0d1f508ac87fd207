// Package kvstore abstracts the key-value store with per-item expiration
// used for session records and transfer progress.
package kvstore

import (
	"context"
	"time"
)

// Store is a key-value store with per-item TTL. Implementations must be
// safe for concurrent use.
type Store interface {
	// Put stores value under key with the given TTL. A zero TTL means no
	// expiration.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key, or common.ErrNotFound when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ConsumeIfUnused atomically marks key as used and reports whether this
	// call was the first to do so. The mark persists for ttl.
	ConsumeIfUnused(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
