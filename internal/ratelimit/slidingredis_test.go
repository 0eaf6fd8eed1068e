package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLimiterAllowSlidingWindow(t *testing.T) {
	client, _ := newRedis(t)
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	now := start
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := time.Minute
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "reseller-1", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
		require.WithinDuration(t, start.Add(window), reset, time.Millisecond)
		now = now.Add(10 * time.Second)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "reseller-1", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "reseller-2", window, max)
	require.NoError(t, err)
	require.True(t, allowed)

	now = start.Add(window + 30*time.Second)
	allowed, _, _, err = limiter.Allow(ctx, "reseller-1", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterDisabled(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
