package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache(WithTTLClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, Key("bsi", "BTC"), []byte("a"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, Key("bsi", "ETH"), []byte("b"), 0))

	b, ok, err := c.GetBytes(ctx, "preda:bsi:BTC")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", string(b))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "preda:bsi:BTC")
	assert.False(t, ok)

	_, ok, _ = c.GetBytes(ctx, "preda:bsi:ETH")
	assert.True(t, ok, "zero ttl never expires")
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheCopiesValues(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, c.SetBytes(ctx, "k", v, time.Minute))
	v[0] = 'x'

	got, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'
	again, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestTTLCacheSweepAndDelete(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLCache(WithTTLClock(func() time.Time { return now }))
	ctx := context.Background()
	_ = c.SetBytes(ctx, "a", nil, time.Second)
	_ = c.SetBytes(ctx, "b", nil, time.Hour)
	_ = c.SetBytes(ctx, "c", nil, time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	require.NoError(t, c.Delete(ctx, "b"))
	assert.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "preda", Key())
	assert.Equal(t, "preda:bsi:BTC", Key("bsi", "BTC"))
}
