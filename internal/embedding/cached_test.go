package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BOSEON-SEO/CSAI/internal/cache"
)

type countingEmbedder struct {
	*HashEmbedder
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.Embed(ctx, texts)
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.EmbedSingle(ctx, text)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) GetMany(context.Context, []string) (map[string][]byte, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) SetMany(context.Context, map[string][]byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) Purge(context.Context, string) (int, error) { return 0, nil }
func (brokenCache) Close() error                               { return nil }

func TestCachedEmbedder_EmbedSingleHitsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	mem, err := cache.NewMemoryClient(10)
	require.NoError(t, err)
	e := NewCachedEmbedder(inner, mem, time.Hour, nil)

	first, err := e.EmbedSingle(ctx, "펌웨어 업데이트")
	require.NoError(t, err)
	second, err := e.EmbedSingle(ctx, "펌웨어 업데이트")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, mem.Len())
}

func TestCachedEmbedder_EmbedOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	mem, err := cache.NewMemoryClient(10)
	require.NoError(t, err)
	e := NewCachedEmbedder(inner, mem, 0, nil)

	_, err = e.EmbedSingle(ctx, "a")
	require.NoError(t, err)

	vecs, err := e.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	want, _ := NewHashEmbedder(16).Embed(ctx, []string{"a", "b", "c"})
	assert.Equal(t, want, vecs)
	assert.Equal(t, int32(2), inner.calls.Load())

	_, err = e.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedder_CacheFailureBypassed(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	e := NewCachedEmbedder(inner, brokenCache{}, time.Minute, nil)

	vec, err := e.EmbedSingle(context.Background(), "케이블")
	require.NoError(t, err)
	assert.Len(t, vec, 16)

	vecs, err := e.Embed(context.Background(), []string{"케이블", "배터리"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedder_DiscardsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	mem, err := cache.NewMemoryClient(10)
	require.NoError(t, err)
	e := NewCachedEmbedder(inner, mem, 0, nil)

	require.NoError(t, mem.Set(ctx, e.Key("a"), encodeVector([]float32{1, 0}), 0))

	vecs, err := e.Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 16)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = e.Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_InnerFailurePropagates(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16), err: ErrEmbeddingUnavailable}
	mem, err := cache.NewMemoryClient(10)
	require.NoError(t, err)
	e := NewCachedEmbedder(inner, mem, time.Minute, nil)

	_, err = e.EmbedSingle(context.Background(), "케이블")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, 0, mem.Len())
}

func TestCachedEmbedder_KeyDependsOnModel(t *testing.T) {
	mem, err := cache.NewMemoryClient(10)
	require.NoError(t, err)
	a := NewCachedEmbedder(NewHashEmbedder(16), mem, 0, nil)

	key := a.Key("text")
	assert.Regexp(t, `^emb:[0-9a-f]{64}$`, key)
	assert.NotEqual(t, key, a.Key("text2"))
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
