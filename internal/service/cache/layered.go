package cache

import (
	"context"
	"io"
	"time"
)

// LayeredCache puts a short-lived in-process L1 in front of a shared L2
// (usually Redis). Writes go through to L2 first.
type LayeredCache struct {
	l1    *TTLCache
	l2    BytesCache
	l1TTL time.Duration
}

// NewLayeredCache keeps L1 copies for at most l1TTL; a non-positive value
// means one second.
func NewLayeredCache(l1 *TTLCache, l2 BytesCache, l1TTL time.Duration) *LayeredCache {
	if l1TTL <= 0 {
		l1TTL = time.Second
	}
	return &LayeredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (lc *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := lc.l1.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := lc.l2.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = lc.l1.SetBytes(ctx, key, b, lc.l1TTL)
	return b, true, nil
}

func (lc *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := lc.l2.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := lc.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	return lc.l1.SetBytes(ctx, key, value, l1TTL)
}

func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	_ = lc.l1.Delete(ctx, key)
	return lc.l2.Delete(ctx, key)
}

// Close closes L2 when it holds resources.
func (lc *LayeredCache) Close() error {
	if c, ok := lc.l2.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
