package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	*TTLCache
	gets   int
	setErr error
	closed bool
}

func (c *countingCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	return c.TTLCache.GetBytes(ctx, key)
}

func (c *countingCache) SetBytes(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	return c.TTLCache.SetBytes(ctx, key, v, ttl)
}

func (c *countingCache) Close() error {
	c.closed = true
	return nil
}

func TestLayeredReadsThroughAndFillsL1(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l2 := &countingCache{TTLCache: NewTTLCache(WithTTLClock(clock))}
	lc := NewLayeredCache(NewTTLCache(WithTTLClock(clock)), l2, 2*time.Second)

	require.NoError(t, l2.TTLCache.SetBytes(ctx, Key("bsi", "BTC"), []byte("v1"), time.Minute))

	b, ok, err := lc.GetBytes(ctx, Key("bsi", "BTC"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(b))
	assert.Equal(t, 1, l2.gets)

	_, _, _ = lc.GetBytes(ctx, Key("bsi", "BTC"))
	assert.Equal(t, 1, l2.gets, "second read served from L1")

	now = now.Add(3 * time.Second)
	_, _, _ = lc.GetBytes(ctx, Key("bsi", "BTC"))
	assert.Equal(t, 2, l2.gets, "L1 copy expired")

	_, ok, err = lc.GetBytes(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredWriteThrough(t *testing.T) {
	ctx := context.Background()
	l2 := &countingCache{TTLCache: NewTTLCache()}
	lc := NewLayeredCache(NewTTLCache(), l2, time.Minute)

	require.NoError(t, lc.SetBytes(ctx, "k", []byte("x"), time.Minute))
	_, ok, _ := l2.TTLCache.GetBytes(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, lc.Delete(ctx, "k"))
	_, ok, _ = lc.GetBytes(ctx, "k")
	assert.False(t, ok)

	l2.setErr = errors.New("redis down")
	assert.Error(t, lc.SetBytes(ctx, "k", []byte("y"), time.Minute))
	_, ok, _ = lc.l1.GetBytes(ctx, "k")
	assert.False(t, ok, "L1 is not filled when L2 rejects the write")

	require.NoError(t, lc.Close())
	assert.True(t, l2.closed)
}
