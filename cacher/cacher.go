// Package cacher caches values that are expensive to produce, such as resolved
// endpoint addresses. A miss is filled by a caller-supplied fetch function and
// concurrent misses for the same key share a single fetch. Fetch failures are
// never cached.
package cacher

import (
	"context"
	"time"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher is a cache of T values keyed by string. Implementations are safe for
// concurrent use.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn, stores
	// its result for ttl and returns it.
	//
	// Parameters:
	//   - ctx: Context for cancellation; passed through to fetchFn
	//   - key: The cache key
	//   - ttl: How long a fetched value stays cached
	//   - fetchFn: Called on a miss
	//
	// Returns:
	//   - The cached or fetched value
	//   - An error if the backend or fetchFn fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes key from the cache. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this cacher.
	Clear(ctx context.Context) error

	// ItemCount returns the number of entries owned by this cacher.
	ItemCount(ctx context.Context) (int, error)
}
