package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/BOSEON-SEO/CSAI/internal/cache"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
)

// CacheNamespace prefixes every embedding cache key.
const CacheNamespace = "emb"

// CachedEmbedder memoizes vectors from another Embedder. Cache failures are
// logged and bypassed; only the wrapped embedder can fail a request.
type CachedEmbedder struct {
	inner  Embedder
	cache  cache.Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewCachedEmbedder wraps inner with cache. A zero ttl keeps entries until evicted.
func NewCachedEmbedder(inner Embedder, c cache.Client, ttl time.Duration, logger *observability.Logger) *CachedEmbedder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Embed returns cached vectors where present and embeds the rest in one
// call. Lookups and stores each take a single cache round trip.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.Key(text)
	}

	cached, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Embedding cache read failed")
		cached = nil
	}

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.decode(cached[keys[i]]); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	c.logger.Debug().
		Int("hits", len(texts)-len(missTexts)).
		Int("misses", len(missTexts)).
		Msg("Embedding cache lookup")

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingUnavailable, len(fresh), len(missTexts))
	}

	pending := make(map[string][]byte, len(fresh))
	for j, vec := range fresh {
		out[missIdx[j]] = vec
		pending[keys[missIdx[j]]] = encodeVector(vec)
	}
	if err := c.cache.SetMany(ctx, pending, c.ttl); err != nil {
		c.logger.Warn().Err(err).Int("entries", len(pending)).Msg("Embedding cache write failed")
	}
	return out, nil
}

// EmbedSingle returns the cached vector for text or embeds it.
func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, text, vec)
	return vec, nil
}

// Model returns the wrapped model name.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Dimension returns the wrapped embedding dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Key returns the cache key for text under the wrapped model.
func (c *CachedEmbedder) Key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "|" + text))
	return cache.CacheKey(CacheNamespace, hex.EncodeToString(sum[:]))
}

func (c *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.cache.Get(ctx, c.Key(text))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Embedding cache read failed")
		}
		return nil, false
	}
	return c.decode(data)
}

// decode reports false for absent data and for entries of the wrong size.
func (c *CachedEmbedder) decode(data []byte) ([]float32, bool) {
	if data == nil {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil || len(vec) != c.inner.Dimension() {
		c.logger.Warn().Int("bytes", len(data)).Msg("Discarding malformed cached embedding")
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, text string, vec []float32) {
	if err := c.cache.Set(ctx, c.Key(text), encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("Embedding cache write failed")
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding length %d", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
