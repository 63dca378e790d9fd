package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Dial(context.Background(), Options{Addr: mr.Addr()}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestClient_AcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	release, ok, err := c.Acquire(ctx, "vwf:save:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.Acquire(ctx, "vwf:save:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	release()
	assert.False(t, mr.Exists("vwf:save:1"))

	_, ok, err = c.Acquire(ctx, "vwf:save:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_ReleaseLeavesForeignLock(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	release, ok, err := c.Acquire(ctx, "vwf:save:2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expires and is taken by another process
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("vwf:save:2", "someone-else"))

	release()
	got, err := mr.Get("vwf:save:2")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), Options{Addr: "127.0.0.1:1"}, logger.Nop())
	assert.Error(t, err)
}

func TestNewClient_WrapsExisting(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewClient(raw, logger.Nop())
	assert.Same(t, raw, c.GetUnderlying())
	assert.NoError(t, c.Health(context.Background()))
}
