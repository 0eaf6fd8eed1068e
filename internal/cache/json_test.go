package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/cache"
)

type payload struct {
	Total string `json:"total"`
}

func TestJSONRoundTripAndDelete(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewJSON(client, time.Minute)
	ctx := context.Background()
	key := cache.KeyResellerEarnings(" ABC ")
	require.Equal(t, "affiliate:earnings:abc", key)

	var out payload
	found, err := c.GetJSON(ctx, key, &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.SetJSON(ctx, key, payload{Total: "42.00"}))
	found, err = c.GetJSON(ctx, key, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "42.00", out.Total)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, key, &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.SetJSON(ctx, key, payload{Total: "1"}))
	require.NoError(t, c.Delete(ctx, key))
	found, err = c.GetJSON(ctx, key, &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := cache.NewJSON(nil, time.Minute)
	var out payload
	found, err := c.GetJSON(context.Background(), "k", &out)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.SetJSON(context.Background(), "k", out))
}
