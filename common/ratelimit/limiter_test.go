package ratelimit

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

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, logger.Nop()), mr
}

func TestCheckClient_BlocksOverLimit(t *testing.T) {
	ctx := context.Background()
	rl, _ := newLimiter(t)
	rule := GenerateRule(2, time.Minute)

	for i := int64(1); i <= 2; i++ {
		res, err := rl.CheckClient(ctx, rule, "abc")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.CurrentCount)
		assert.Zero(t, res.RetryAfterSeconds)
	}

	res, err := rl.CheckClient(ctx, rule, "abc")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(2), res.Limit)
	assert.Greater(t, res.RetryAfterSeconds, int64(0))

	other, err := rl.CheckClient(ctx, rule, "xyz")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "clients are counted separately")
}

func TestCheckGlobal_WindowResets(t *testing.T) {
	ctx := context.Background()
	rl, mr := newLimiter(t)
	rule := Rule{Name: "generate:global", Limit: 1, Window: 10 * time.Second}

	res, err := rl.CheckGlobal(ctx, rule)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = rl.CheckGlobal(ctx, rule)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(11 * time.Second)

	res, err = rl.CheckGlobal(ctx, rule)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCountAndReset(t *testing.T) {
	ctx := context.Background()
	rl, _ := newLimiter(t)
	rule := GenerateRule(5, time.Minute)

	_, err := rl.CheckClient(ctx, rule, "abc")
	require.NoError(t, err)

	key := Key(rule, "abc")
	assert.Equal(t, "rate_limit:generate:client:abc", key)
	n, err := rl.GetCurrentCount(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, rl.ResetLimit(ctx, key))
	n, err = rl.GetCurrentCount(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRule_WindowSeconds(t *testing.T) {
	assert.Equal(t, 60, DefaultGlobalGenerate.WindowSeconds())
	assert.Equal(t, 2, Rule{Window: 1500 * time.Millisecond}.WindowSeconds())
	assert.Equal(t, 1, Rule{}.WindowSeconds())
}
