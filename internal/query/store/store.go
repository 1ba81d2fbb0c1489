// Package store holds the query layer's cached read results. Implementations
// keep opaque encoded values plus the fetch instant; staleness policy lives in
// the query layer, not here.
package store

import (
	"context"
	"time"
)

// Entry is one cached read result. A zero FetchedAt marks the entry stale
// regardless of age, which is how invalidation works without dropping the
// last-known value.
type Entry struct {
	Value     []byte
	FetchedAt time.Time
}

// Store is the cache backend. Get returns sentinel.ErrNotFound for missing
// keys.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys with the given prefix. Scoped invalidation
	// uses it to find the listing-collection entries without touching
	// anything else.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
