package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent. Callers fall
// back to the authoritative store; the cache is an optimization only.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the coherence layer in front of persisted records. Every
// write path that changes reader-visible state must Delete the exact
// keys it affects and DeleteByPrefix for listing keys derived from
// query parameters.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
