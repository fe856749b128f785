package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainfeed/gateway/internal/storage"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(storage.NewRedisFromClient(client)), mr
}

func TestRedisCheckSequence(t *testing.T) {
	limiter, _ := newTestRedis(t)
	ctx := context.Background()

	const limit = 3

	for i := 1; i <= limit; i++ {
		result, err := limiter.Check(ctx, "wallet:0xabc", limit, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "call %d", i)
		assert.Equal(t, limit-i, result.Remaining, "call %d", i)
	}

	result, err := limiter.Check(ctx, "wallet:0xabc", limit, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestRedisRejectedCallsDoNotAdvanceCounter(t *testing.T) {
	limiter, mr := newTestRedis(t)
	ctx := context.Background()

	limiter.Check(ctx, "k", 1, time.Minute)

	for i := 0; i < 5; i++ {
		result, err := limiter.Check(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	}

	count, err := mr.Get("ratelimit:k")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestRedisWindowExpiry(t *testing.T) {
	limiter, mr := newTestRedis(t)
	ctx := context.Background()

	limiter.Check(ctx, "k", 1, time.Minute)

	blocked, err := limiter.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	mr.FastForward(61 * time.Second)

	result, err := limiter.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestRedisUnlimited(t *testing.T) {
	limiter, mr := newTestRedis(t)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "k", Unlimited, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, Unlimited, result.Remaining)

	assert.False(t, mr.Exists("ratelimit:k"))
}

func TestRedisZeroLimitRejects(t *testing.T) {
	limiter, mr := newTestRedis(t)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "k", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// Rejected outright, before the script could create a counter.
	assert.False(t, mr.Exists("ratelimit:k"))
}
