package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCache(t *testing.T) {
	c := NewNoopCache()
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "k"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer c.Close()

	prefix := "stocklens-test:" + time.Now().Format("150405.000") + ":"
	c.Set(ctx, prefix+"a", []byte("1"), time.Minute)
	c.Set(ctx, prefix+"b", []byte("2"), time.Minute)
	c.Set(ctx, "other:"+prefix, []byte("3"), time.Minute)

	v, ok := c.Get(ctx, prefix+"a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, c.Invalidate(ctx, prefix))
	_, ok = c.Get(ctx, prefix+"a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other:"+prefix)
	assert.True(t, ok, "keys outside the prefix survive")
	require.NoError(t, c.Invalidate(ctx, "other:"+prefix))
}
