// Package cache provides the key/value cache used to memoize embeddings.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Client is a byte-valued cache. Batch calls let callers memoize a whole
// embedding batch in one round trip; absent keys are simply left out of the
// GetMany result.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	// Purge removes every key starting with prefix and reports how many went.
	Purge(ctx context.Context, prefix string) (int, error)
	Close() error
}

// CacheKey joins key components with ':'.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
