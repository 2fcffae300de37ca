// Package cache defines the shared counter/cache store capability consumed
// by the admission controller and the query cache, together with a Redis
// implementation and an in-process fallback.
//
// The store is treated as an externally synchronized resource: Increment is
// atomic with respect to concurrent callers, and no in-process lock is ever
// held across a store call. Callers on the request path must treat every
// operation as best-effort — a store failure degrades caching and rate
// limiting, it never fails a request.
package cache

import (
	"context"
	"time"
)

// Store is the key/value capability backing both the rate-limit counters
// and the query cache.
//
// Semantics:
//   - Get returns (nil, nil) on a miss; a miss is never an error.
//   - Count returns 0 for keys that do not exist or hold non-numeric data.
//   - Increment is atomic and returns the post-increment value; keys start
//     at zero.
//   - Keys expands a glob-style pattern (e.g. "listing:*") to the matching
//     key set; used for invalidation sweeps.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Count(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}

// DeleteByPattern removes every key matching pattern. It is a convenience
// wrapper over Keys+Delete shared by all Store implementations; a single
// mutation can affect unboundedly many cached listing pages, so sweeps are
// prefix-wide rather than targeted.
func DeleteByPattern(ctx context.Context, s Store, pattern string) error {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.Delete(ctx, keys...)
}
