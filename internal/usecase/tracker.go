package usecase

import (
	"sync"

	"Preda/internal/bsi"
	"Preda/internal/domain/models"
)

// DomainTracker owns the aggregator, calculator and monitor of one domain.
// The aggregator and calculator are not synchronized themselves; every
// access goes through mu.
type DomainTracker struct {
	domain string

	mu     sync.Mutex
	agg    *bsi.SignalAggregator
	calc   *bsi.Calculator
	mon    *bsi.Monitor
	latest *models.BeliefStateIndex
}

func newDomainTracker(domain string, cfg EngineConfig, clock bsiClock) *DomainTracker {
	var (
		aggOpts  []bsi.AggregatorOption
		calcOpts []bsi.CalculatorOption
	)
	if clock != nil {
		aggOpts = append(aggOpts, bsi.WithAggregatorClock(clock))
		calcOpts = append(calcOpts, bsi.WithCalculatorClock(clock))
	}
	return &DomainTracker{
		domain: domain,
		agg:    bsi.NewSignalAggregator(cfg.MaxBufferSize, aggOpts...),
		calc:   bsi.NewCalculator(cfg.BSI, calcOpts...),
		mon:    bsi.NewMonitor(cfg.Threshold, cfg.MinPersistence),
	}
}

func (t *DomainTracker) Domain() string { return t.domain }

func (t *DomainTracker) add(signals []models.BeliefSignal) {
	t.mu.Lock()
	t.agg.AddSignals(signals)
	t.mu.Unlock()
}

// compute evicts stale signals, fuses the recent window and feeds the monitor.
// Monitor subscribers run before compute returns, with mu held.
func (t *DomainTracker) compute(maxAge, window int64) (models.BsiUpdate, *models.BeliefInflection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if maxAge > 0 {
		t.agg.ClearOldSignals(maxAge)
	}
	var signals []models.BeliefSignal
	if window > 0 {
		signals = t.agg.RecentSignals(window)
	} else {
		signals = t.agg.AllSignals()
	}
	idx := t.calc.Calculate(signals, t.domain)
	t.latest = &idx

	update := models.BsiUpdate{Bsi: idx, Signals: signals, Timestamp: idx.LastUpdated}
	if inf, ok := t.mon.Update(idx); ok {
		return update, &inf
	}
	return update, nil
}

func (t *DomainTracker) decay() {
	t.mu.Lock()
	t.calc.ApplyDecay()
	t.mu.Unlock()
}

func (t *DomainTracker) latestIndex() (models.BeliefStateIndex, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return models.BeliefStateIndex{}, false
	}
	return *t.latest, true
}

func (t *DomainTracker) history(limit int) []models.BeliefStateIndex {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.calc.History()
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return h
}

func (t *DomainTracker) statistics() models.SignalStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.Statistics()
}

func (t *DomainTracker) bufferedSignals() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.TotalSignalCount()
}
