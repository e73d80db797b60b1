package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisClient_GetSet(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)

	_, err := client.Get(ctx, "emb:missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, client.Set(ctx, "emb:a", []byte("vector"), time.Minute))
	got, err := client.Get(ctx, "emb:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("vector"), got)

	assert.True(t, mr.Exists("csai:emb:a"))

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "emb:a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_BatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)

	require.NoError(t, client.SetMany(ctx, map[string][]byte{
		"emb:a": []byte("1"),
		"emb:b": []byte("2"),
	}, time.Minute))
	assert.True(t, mr.Exists("csai:emb:b"))

	got, err := client.GetMany(ctx, []string{"emb:a", "emb:missing", "emb:b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"emb:a": []byte("1"), "emb:b": []byte("2")}, got)

	got, err = client.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, client.SetMany(ctx, nil, 0))

	mr.FastForward(2 * time.Minute)
	got, err = client.GetMany(ctx, []string{"emb:a", "emb:b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisClient_Purge(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)

	require.NoError(t, client.Set(ctx, "emb:model-a:1", []byte("1"), 0))
	require.NoError(t, client.Set(ctx, "emb:model-a:2", []byte("2"), 0))
	require.NoError(t, client.Set(ctx, "emb:model-b:1", []byte("3"), 0))
	require.NoError(t, mr.Set("other:emb:model-a:3", "x"))

	n, err := client.Purge(ctx, "emb:model-a:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = client.Get(ctx, "emb:model-a:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err := client.Get(ctx, "emb:model-b:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	assert.True(t, mr.Exists("other:emb:model-a:3"))

	n, err = client.Purge(ctx, "emb:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisClient_ServerDown(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	mr.Close()

	_, err := client.Get(ctx, "emb:a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestMemoryClient_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	client, err := NewMemoryClient(10)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	require.NoError(t, client.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, client.Set(ctx, "b", []byte("2"), 0))

	got, err := client.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(2 * time.Minute)
	_, err = client.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	got, err = client.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestMemoryClient_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	client, err := NewMemoryClient(2)
	require.NoError(t, err)

	require.NoError(t, client.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, client.Set(ctx, "b", []byte("2"), 0))
	_, err = client.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "c", []byte("3"), 0))

	assert.Equal(t, 2, client.Len())
	_, err = client.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = client.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryClient_BatchAndPurge(t *testing.T) {
	ctx := context.Background()
	client, err := NewMemoryClient(0)
	require.NoError(t, err)

	require.NoError(t, client.SetMany(ctx, map[string][]byte{
		"emb:x:1": []byte("1"),
		"emb:x:2": []byte("2"),
		"emb:y:1": []byte("3"),
	}, 0))

	got, err := client.GetMany(ctx, []string{"emb:x:1", "emb:z:1", "emb:y:1"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"emb:x:1": []byte("1"), "emb:y:1": []byte("3")}, got)

	n, err := client.Purge(ctx, "emb:x:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, client.Len())

	require.NoError(t, client.Close())
	assert.Equal(t, 0, client.Len())
}

func TestMemoryClient_CopiesValue(t *testing.T) {
	ctx := context.Background()
	client, err := NewMemoryClient(1)
	require.NoError(t, err)

	value := []byte("abc")
	require.NoError(t, client.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "emb:model:abc", CacheKey("emb", "model", "abc"))
	assert.Equal(t, "", CacheKey())
}
