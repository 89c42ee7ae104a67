package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisCache(client), mr
}

type summary struct {
	Revenue float64 `json:"revenue"`
	Trips   int     `json:"trips"`
}

func TestSetGetDelete(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var out summary
	ok, err := c.Get(ctx, "stats:summary", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "stats:summary", summary{Revenue: 500000, Trips: 3}, time.Minute))
	ok, err = c.Get(ctx, "stats:summary", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary{Revenue: 500000, Trips: 3}, out)

	require.NoError(t, c.Delete(ctx, "stats:summary"))
	ok, _ = c.Get(ctx, "stats:summary", &out)
	assert.False(t, ok)
}

func TestTTLExpires(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, 30*time.Second))
	mr.FastForward(31 * time.Second)

	var v int
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemember(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	calls := 0
	load := func() (summary, error) {
		calls++
		return summary{Trips: calls}, nil
	}

	first, err := Remember(ctx, c, "r", time.Minute, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "r", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = Remember(ctx, c, "other", time.Minute, func() (summary, error) {
		return summary{}, errors.New("db down")
	})
	assert.Error(t, err)
}

func TestNilCacheIsMiss(t *testing.T) {
	var c *RedisCache
	var v int
	ok, err := c.Get(context.Background(), "x", &v)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(context.Background(), "x", 1, time.Second))
}
