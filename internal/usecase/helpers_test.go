package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"Preda/internal/bsi"
	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: time.Unix(1_700_000_000, 0)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubSource struct {
	name  string
	value float64
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubSource) Name() string                  { return s.name }
func (s *stubSource) UpdateFrequency() time.Duration { return time.Minute }

func (s *stubSource) Query(_ context.Context, domain string) (models.BeliefSignal, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return models.BeliefSignal{}, s.err
	}
	return models.BeliefSignal{
		Source:     s.name,
		SignalType: models.SignalSentiment,
		Value:      s.value,
		Weight:     1,
		Timestamp:  time.Now().Unix(),
		Metadata:   []models.MetadataEntry{{Key: "domain", Value: domain}},
	}, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []models.BsiUpdate
	events  []models.InflectionEvent
	err     error
	closed  bool
}

func (p *recordingPublisher) PublishUpdates(_ context.Context, us []models.BsiUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, us...)
	return nil
}

func (p *recordingPublisher) PublishInflection(_ context.Context, ev models.InflectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) snapshot() ([]models.BsiUpdate, []models.InflectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.BsiUpdate(nil), p.updates...), append([]models.InflectionEvent(nil), p.events...)
}

type recordingArchive struct {
	mu          sync.Mutex
	batches     [][]models.BeliefStateIndex
	inflections []models.InflectionEvent
}

func (a *recordingArchive) Init(context.Context) error { return nil }

func (a *recordingArchive) StoreIndex(ctx context.Context, idx models.BeliefStateIndex) error {
	return a.StoreIndexBatch(ctx, []models.BeliefStateIndex{idx})
}

func (a *recordingArchive) StoreIndexBatch(_ context.Context, idx []models.BeliefStateIndex) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = append(a.batches, append([]models.BeliefStateIndex(nil), idx...))
	return nil
}

func (a *recordingArchive) StoreInflection(_ context.Context, ev models.InflectionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflections = append(a.inflections, ev)
	return nil
}

func (a *recordingArchive) Query(context.Context, string, time.Time, time.Time, drepo.Timeframe, int) ([]models.BeliefStateIndex, error) {
	return nil, errors.New("not implemented")
}

func (a *recordingArchive) Health(context.Context) error { return nil }
func (a *recordingArchive) Close() error                 { return nil }

type eventCollector struct {
	mu     sync.Mutex
	events []models.InflectionEvent
}

func (c *eventCollector) Dispatch(ev models.InflectionEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func testEngineConfig(domains ...string) EngineConfig {
	return EngineConfig{
		Domains:        domains,
		MaxBufferSize:  100,
		SignalMaxAge:   60,
		RecentWindow:   60,
		QueryTimeout:   time.Second,
		CacheTTL:       time.Minute,
		BSI:            bsi.DefaultConfig(),
		Threshold:      0.5,
		MinPersistence: 120,
	}
}

func signalAt(clock *testClock, source string, v float64) models.BeliefSignal {
	return models.BeliefSignal{Source: source, SignalType: models.SignalSentiment, Value: v, Weight: 1, Timestamp: clock.Now().Unix()}
}
