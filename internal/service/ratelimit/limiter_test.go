package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(1, 2, WithClock(func() time.Time { return now }))

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiterAllowNIsAllOrNothing(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, 5, WithClock(func() time.Time { return now }))
	assert.False(t, l.AllowN("a", 6))
	assert.True(t, l.AllowN("a", 5))
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a"))
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, 1, WithIdle(time.Minute), WithClock(func() time.Time { return now }))
	l.Allow("old")
	now = now.Add(2 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())
}
