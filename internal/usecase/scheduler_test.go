package usecase

import (
	"context"
	"testing"
	"time"

	drepo "Preda/internal/domain/repository"
	"Preda/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRefreshAllComputesEveryDomain(t *testing.T) {
	src := &stubSource{name: "oracle", value: 0.3}
	e := NewBeliefEngine(testEngineConfig("BTC", "ETH", "SOL"), []drepo.SignalSource{src}, nil, metrics.Noop{}, nil)
	s := NewScheduler(e, nil, SchedulerConfig{Parallelism: 2}, nil)

	s.RefreshAll(context.Background())

	assert.Equal(t, 3, src.calls)
	for _, d := range e.Domains() {
		idx, err := e.Latest(context.Background(), d)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, idx.Value, 1e-9)
		assert.Equal(t, d, idx.Domain)
	}
}

func TestDecayAll(t *testing.T) {
	clock := newTestClock()
	e := NewBeliefEngine(testEngineConfig("BTC"), nil, nil, metrics.Noop{}, nil, WithEngineClock(clock.Now))
	feed(t, e, clock, 0.4)
	NewScheduler(e, nil, SchedulerConfig{}, nil).DecayAll()
	h, _ := e.History("BTC", 0)
	assert.InDelta(t, 0.38, h[0].Value, 1e-9)
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	src := &stubSource{name: "oracle", value: 0.1}
	e := NewBeliefEngine(testEngineConfig("BTC"), []drepo.SignalSource{src}, nil, metrics.Noop{}, nil)
	v := NewPersistenceValidator(e, nil, metrics.Noop{}, nil, time.Hour)
	s := NewScheduler(e, v, SchedulerConfig{
		RefreshInterval:    10 * time.Millisecond,
		ValidationInterval: 10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
