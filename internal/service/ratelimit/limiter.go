package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key, e.g. per remote address or per
// signal source. Buckets idle longer than the idle window are dropped on the
// next Prune.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*bucket
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

type Option func(*Limiter)

func WithIdle(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idle = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter allowing rps events per second with the given burst.
// A non-positive rps disables limiting.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		m:     make(map[string]*bucket),
		rps:   rate.Limit(rps),
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
	}
	if rps <= 0 {
		l.rps = rate.Inf
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN consumes n tokens for key, all or nothing.
func (l *Limiter) AllowN(key string, n int) bool {
	now := l.now()
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, n)
}

// Prune removes idle buckets and returns how many were removed.
func (l *Limiter) Prune() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.m {
		if b.seen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
