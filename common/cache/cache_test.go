package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/logger"
	rediscommon "github.com/lyzr/workflow-router/common/redis"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "workflows")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "workflows", []byte(`[1,2]`), time.Minute))
	val, ok, err := c.Get(ctx, "workflows")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1,2]`, string(val))

	require.NoError(t, c.Delete(ctx, "workflows"))
	_, ok, err = c.Get(ctx, "workflows")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()
	exercise(t, c)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats()["entries"])
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := rediscommon.Dial(context.Background(), rediscommon.Options{Addr: mr.Addr()}, logger.Nop())
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisCache(client, "vwf:cache:")
	exercise(t, c)

	require.NoError(t, c.Set(context.Background(), "x", []byte("1"), time.Minute))
	assert.True(t, mr.Exists("vwf:cache:x"))
}
