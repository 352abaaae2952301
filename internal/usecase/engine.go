package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"Preda/internal/bsi"
	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	domsvc "Preda/internal/domain/service"
	icache "Preda/internal/service/cache"
	apimetrics "Preda/internal/service/metrics"
	applogger "Preda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type bsiClock = func() time.Time

// EngineConfig carries the engine settings resolved from the app config.
type EngineConfig struct {
	Domains        []string
	MaxBufferSize  int
	SignalMaxAge   int64
	RecentWindow   int64
	QueryTimeout   time.Duration
	CacheTTL       time.Duration
	BSI            bsi.Config
	Threshold      float64
	MinPersistence int64
}

// InflectionListener is told about every inflection together with its domain.
// It runs synchronously inside Compute and must not call back into the engine
// for the same domain.
type InflectionListener interface {
	OnInflection(domain string, inf models.BeliefInflection)
}

// InflectionListenerFunc adapts a function to InflectionListener.
type InflectionListenerFunc func(domain string, inf models.BeliefInflection)

func (f InflectionListenerFunc) OnInflection(domain string, inf models.BeliefInflection) {
	f(domain, inf)
}

// UpdateSink receives every computed update after the domain lock is released.
type UpdateSink interface {
	HandleUpdate(ctx context.Context, u models.BsiUpdate)
}

// BeliefEngine runs the fusion core for a fixed set of domains: it gathers
// signals from the oracles, computes indices, watches for inflections and
// serves the latest state.
type BeliefEngine struct {
	cfg      EngineConfig
	sources  []drepo.SignalSource
	cache    icache.BytesCache
	metrics  drepo.Metrics
	log      *applogger.Logger
	now      bsiClock
	trackers map[string]*DomainTracker

	lmu       sync.RWMutex
	listeners []InflectionListener
	sinks     []UpdateSink
}

type EngineOption func(*BeliefEngine)

// WithEngineClock drives the aggregators and calculators from now.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *BeliefEngine) { e.now = now }
}

func NewBeliefEngine(cfg EngineConfig, sources []drepo.SignalSource, cache icache.BytesCache, metrics drepo.Metrics, log *applogger.Logger, opts ...EngineOption) *BeliefEngine {
	if log == nil {
		log = applogger.Nop()
	}
	e := &BeliefEngine{
		cfg:      cfg,
		sources:  sources,
		cache:    cache,
		metrics:  metrics,
		log:      log.With(applogger.String("component", "engine")),
		trackers: make(map[string]*DomainTracker, len(cfg.Domains)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, d := range cfg.Domains {
		if _, ok := e.trackers[d]; ok {
			continue
		}
		t := newDomainTracker(d, cfg, e.now)
		domain := d
		t.mon.OnInflection(domsvc.SubscriberFunc(func(inf models.BeliefInflection) {
			e.notify(domain, inf)
		}))
		e.trackers[d] = t
	}
	return e
}

// Domains returns the tracked domains sorted.
func (e *BeliefEngine) Domains() []string {
	out := make([]string, 0, len(e.trackers))
	for d := range e.trackers {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (e *BeliefEngine) Sources() []drepo.SignalSource { return e.sources }

// Subscribe registers an inflection listener for all domains.
func (e *BeliefEngine) Subscribe(l InflectionListener) {
	if l == nil {
		return
	}
	e.lmu.Lock()
	e.listeners = append(e.listeners, l)
	e.lmu.Unlock()
}

// AddUpdateSink registers a consumer of computed updates.
func (e *BeliefEngine) AddUpdateSink(s UpdateSink) {
	if s == nil {
		return
	}
	e.lmu.Lock()
	e.sinks = append(e.sinks, s)
	e.lmu.Unlock()
}

func (e *BeliefEngine) notify(domain string, inf models.BeliefInflection) {
	e.lmu.RLock()
	ls := append([]InflectionListener(nil), e.listeners...)
	e.lmu.RUnlock()
	e.metrics.RecordInflection(domain, inf.InflectionType, models.InflectionDetected)
	for _, l := range ls {
		l.OnInflection(domain, inf)
	}
}

func (e *BeliefEngine) tracker(domain string) (*DomainTracker, error) {
	t, ok := e.trackers[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownDomain, domain)
	}
	return t, nil
}

// Refresh queries every source concurrently and ingests what came back.
// Failing sources are logged and skipped. It returns the number of signals
// ingested.
func (e *BeliefEngine) Refresh(ctx context.Context, domain string) (int, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return 0, err
	}
	if len(e.sources) == 0 {
		return 0, nil
	}

	start := time.Now()
	results := make([]*models.BeliefSignal, len(e.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		i, src := i, src
		g.Go(func() error {
			qctx := gctx
			if e.cfg.QueryTimeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(gctx, e.cfg.QueryTimeout)
				defer cancel()
			}
			s, err := src.Query(qctx, domain)
			if err != nil {
				e.metrics.RecordError("source_query")
				e.log.Warn("source query failed",
					applogger.String("domain", domain),
					applogger.String("source", src.Name()),
					applogger.Error(err))
				return nil
			}
			results[i] = &s
			return nil
		})
	}
	_ = g.Wait()

	signals := make([]models.BeliefSignal, 0, len(results))
	for _, s := range results {
		if s != nil {
			signals = append(signals, *s)
		}
	}
	t.add(signals)
	e.recordIngested(domain, signals)
	e.metrics.RecordLatency("refresh", time.Since(start).Seconds())
	return len(signals), ctx.Err()
}

// IngestSignals buffers pushed signals for domain.
func (e *BeliefEngine) IngestSignals(_ context.Context, domain string, signals []models.BeliefSignal) error {
	t, err := e.tracker(domain)
	if err != nil {
		return err
	}
	t.add(signals)
	e.recordIngested(domain, signals)
	return nil
}

func (e *BeliefEngine) recordIngested(domain string, signals []models.BeliefSignal) {
	bySource := make(map[string]int)
	for _, s := range signals {
		bySource[s.Source]++
	}
	for src, n := range bySource {
		e.metrics.RecordSignalsIngested(domain, src, n)
	}
}

// Compute produces a new index sample for domain. The returned inflection is
// nil unless the monitor detected one.
func (e *BeliefEngine) Compute(ctx context.Context, domain string) (models.BsiUpdate, *models.BeliefInflection, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return models.BsiUpdate{}, nil, err
	}
	start := time.Now()
	update, inf := t.compute(e.cfg.SignalMaxAge, e.cfg.RecentWindow)
	e.metrics.RecordIndex(update.Bsi)
	e.metrics.RecordLatency("compute", time.Since(start).Seconds())

	e.storeLatest(ctx, update.Bsi)

	e.lmu.RLock()
	sinks := append([]UpdateSink(nil), e.sinks...)
	e.lmu.RUnlock()
	for _, s := range sinks {
		s.HandleUpdate(ctx, update)
	}

	e.log.Debug("bsi computed",
		applogger.String("domain", domain),
		applogger.Float64("value", update.Bsi.Value),
		applogger.Float64("confidence", update.Bsi.Confidence),
		applogger.Uint32("signals", update.Bsi.SignalCount),
		applogger.Bool("inflection", inf != nil))
	return update, inf, nil
}

// ComputeAll computes every domain and returns the updates in domain order.
func (e *BeliefEngine) ComputeAll(ctx context.Context) []models.BsiUpdate {
	out := make([]models.BsiUpdate, 0, len(e.trackers))
	for _, d := range e.Domains() {
		u, _, err := e.Compute(ctx, d)
		if err == nil {
			out = append(out, u)
		}
	}
	return out
}

// Decay scales the retained history of domain by the decay factor.
func (e *BeliefEngine) Decay(domain string) error {
	t, err := e.tracker(domain)
	if err != nil {
		return err
	}
	t.decay()
	return nil
}

func cacheKey(domain string) string { return icache.Key("bsi", domain) }

func (e *BeliefEngine) storeLatest(ctx context.Context, idx models.BeliefStateIndex) {
	if e.cache == nil {
		return
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return
	}
	if err := e.cache.SetBytes(ctx, cacheKey(idx.Domain), b, e.cfg.CacheTTL); err != nil {
		e.metrics.RecordError("cache_set")
		e.log.Warn("cache set failed", applogger.String("domain", idx.Domain), applogger.Error(err))
	}
}

// Latest returns the most recent index for domain, reading the cache first.
func (e *BeliefEngine) Latest(ctx context.Context, domain string) (models.BeliefStateIndex, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return models.BeliefStateIndex{}, err
	}
	if e.cache != nil {
		b, ok, err := e.cache.GetBytes(ctx, cacheKey(domain))
		switch {
		case err != nil:
			apimetrics.CacheLookups.WithLabelValues("error").Inc()
			e.log.Warn("cache get failed", applogger.String("domain", domain), applogger.Error(err))
		case ok:
			var idx models.BeliefStateIndex
			if json.Unmarshal(b, &idx) == nil {
				apimetrics.CacheLookups.WithLabelValues("hit").Inc()
				return idx, nil
			}
		default:
			apimetrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}
	idx, ok := t.latestIndex()
	if !ok {
		return models.BeliefStateIndex{}, fmt.Errorf("%w: %q", models.ErrNoData, domain)
	}
	e.storeLatest(ctx, idx)
	return idx, nil
}

// History returns up to limit of the most recent samples, oldest first.
// A non-positive limit returns everything retained.
func (e *BeliefEngine) History(domain string, limit int) ([]models.BeliefStateIndex, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return nil, err
	}
	return t.history(limit), nil
}

func (e *BeliefEngine) Statistics(domain string) (models.SignalStatistics, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return models.SignalStatistics{}, err
	}
	return t.statistics(), nil
}

// BufferedSignals returns how many signals domain currently holds.
func (e *BeliefEngine) BufferedSignals(domain string) (int, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return 0, err
	}
	return t.bufferedSignals(), nil
}

// Validate runs the persistence check of domain's monitor on inf.
func (e *BeliefEngine) Validate(domain string, inf models.BeliefInflection) (models.BeliefInflection, bool, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return inf, false, err
	}
	v, ok := t.mon.Validate(inf)
	return v, ok, nil
}

// CheckPersistence exposes the detailed persistence result for domain.
func (e *BeliefEngine) CheckPersistence(domain string, inf models.BeliefInflection) (bsi.PersistenceCheck, error) {
	t, err := e.tracker(domain)
	if err != nil {
		return bsi.PersistenceCheck{}, err
	}
	return t.mon.CheckPersistence(inf), nil
}
