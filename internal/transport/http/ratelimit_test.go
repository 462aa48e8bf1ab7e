package http

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRateLimiter(t *testing.T) {
	disabled := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, disabled.allow(), "disabled limiter must always allow")
	}

	rl := newRateLimiter(3)
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "fourth event in the window must be rejected")

	// Rewind the window start to simulate the window passing.
	rl.mu.Lock()
	rl.start = time.Now().Add(-2 * rl.window)
	rl.mu.Unlock()
	assert.True(t, rl.allow(), "new window must allow again")
}

func TestMemoryLimiterIsPerKey(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(1, time.Minute)

	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys keep their own window")
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("PINCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PINCHAT_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "pinchat:test:" + time.Now().Format("150405.000000") + ":"
	limiter := NewRedisLimiter(client, 2, time.Minute, prefix)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, prefix+"ip").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "window key must expire")
}
