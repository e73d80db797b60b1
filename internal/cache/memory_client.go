package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryClient is a size-bounded in-process cache with per-entry expiry.
// Least recently used entries are evicted first once the bound is reached.
type MemoryClient struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryClient creates a new in-memory cache client.
func NewMemoryClient(maxSize int) (*MemoryClient, error) {
	if maxSize <= 0 {
		maxSize = 10000
	}
	entries, err := lru.New[string, memoryEntry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryClient{entries: entries, now: time.Now}, nil
}

// Get retrieves a value from cache.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value in cache with TTL. A zero TTL never expires.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, entry)
	return nil
}

// GetMany returns the live entries among keys.
func (c *MemoryClient) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, err := c.Get(ctx, k); err == nil {
			found[k] = v
		}
	}
	return found, nil
}

// SetMany stores every value with the same ttl.
func (c *MemoryClient) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	for k, v := range values {
		_ = c.Set(ctx, k, v, ttl)
	}
	return nil
}

// Purge removes all keys with the given prefix.
func (c *MemoryClient) Purge(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) && c.entries.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of cached entries, expired ones included.
func (c *MemoryClient) Len() int {
	return c.entries.Len()
}

// Close drops every entry.
func (c *MemoryClient) Close() error {
	c.entries.Purge()
	return nil
}

var _ Client = (*MemoryClient)(nil)
