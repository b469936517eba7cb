package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCacheRepository(client)
	ctx := context.Background()

	_, err := cache.Get(ctx, "catalog:services:list")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "catalog:services:list", []byte(`[{"id":1}]`), time.Minute))
	value, err := cache.Get(ctx, "catalog:services:list")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, value)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "catalog:services:list")
	assert.ErrorIs(t, err, ErrCacheMiss, "ключ истекает по TTL")

	require.NoError(t, cache.Set(ctx, "a", "1", 0))
	require.NoError(t, cache.Del(ctx, "a", "missing"))
	assert.False(t, mr.Exists("a"))
	require.NoError(t, cache.Del(ctx))

	mr.Close()
	_, err = cache.Get(ctx, "a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNoopCacheRepository(t *testing.T) {
	cache := NewNoopCacheRepository()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, cache.Del(ctx, "k"))
}
