package bsi

import (
	"time"

	"Preda/internal/domain/models"
	"Preda/internal/services/features"
)

// DefaultMaxBufferSize is the per-source cap used when none is configured.
const DefaultMaxBufferSize = 1000

// AggregatorOption configures a SignalAggregator.
type AggregatorOption func(*SignalAggregator)

// WithAggregatorClock replaces the wall clock used by time-window queries.
func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *SignalAggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// SignalAggregator buffers signals per source with a FIFO cap.
// It is not safe for concurrent use.
type SignalAggregator struct {
	buffers       map[string][]models.BeliefSignal
	order         []string
	maxBufferSize int
	now           func() time.Time
}

func NewSignalAggregator(maxBufferSize int, opts ...AggregatorOption) *SignalAggregator {
	if maxBufferSize <= 0 {
		maxBufferSize = DefaultMaxBufferSize
	}
	a := &SignalAggregator{
		buffers:       make(map[string][]models.BeliefSignal),
		maxBufferSize: maxBufferSize,
		now:           time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *SignalAggregator) MaxBufferSize() int { return a.maxBufferSize }

// AddSignal appends s to its source buffer, evicting the oldest entry on overflow.
func (a *SignalAggregator) AddSignal(s models.BeliefSignal) {
	buf, ok := a.buffers[s.Source]
	if !ok {
		a.order = append(a.order, s.Source)
	}
	if len(buf) >= a.maxBufferSize {
		drop := len(buf) - a.maxBufferSize + 1
		buf = append(buf[:0:0], buf[drop:]...)
	}
	a.buffers[s.Source] = append(buf, s.Clone())
}

func (a *SignalAggregator) AddSignals(signals []models.BeliefSignal) {
	for _, s := range signals {
		a.AddSignal(s)
	}
}

// AllSignals returns copies of every buffered signal, grouped by source in
// first-seen order.
func (a *SignalAggregator) AllSignals() []models.BeliefSignal {
	return a.collect(func(models.BeliefSignal) bool { return true })
}

func (a *SignalAggregator) SignalsByType(t models.SignalType) []models.BeliefSignal {
	return a.collect(func(s models.BeliefSignal) bool { return s.SignalType == t })
}

func (a *SignalAggregator) SignalsBySource(source string) []models.BeliefSignal {
	buf := a.buffers[source]
	out := make([]models.BeliefSignal, 0, len(buf))
	for _, s := range buf {
		out = append(out, s.Clone())
	}
	return out
}

// RecentSignals returns signals stamped within the last windowSeconds.
func (a *SignalAggregator) RecentSignals(windowSeconds int64) []models.BeliefSignal {
	cutoff := a.now().Unix() - windowSeconds
	return a.collect(func(s models.BeliefSignal) bool { return s.Timestamp >= cutoff })
}

// AverageByType returns the mean value of signals of type t; ok is false when
// there are none.
func (a *SignalAggregator) AverageByType(t models.SignalType) (avg float64, ok bool) {
	vals := values(a.SignalsByType(t))
	if len(vals) == 0 {
		return 0, false
	}
	return features.Mean(vals), true
}

// SourceDiversity counts sources holding at least one signal.
func (a *SignalAggregator) SourceDiversity() int {
	n := 0
	for _, buf := range a.buffers {
		if len(buf) > 0 {
			n++
		}
	}
	return n
}

func (a *SignalAggregator) TotalSignalCount() int {
	n := 0
	for _, buf := range a.buffers {
		n += len(buf)
	}
	return n
}

func (a *SignalAggregator) Clear() {
	a.buffers = make(map[string][]models.BeliefSignal)
	a.order = nil
}

// ClearOldSignals drops signals older than maxAgeSeconds and forgets sources
// left empty.
func (a *SignalAggregator) ClearOldSignals(maxAgeSeconds int64) {
	cutoff := a.now().Unix() - maxAgeSeconds
	kept := a.order[:0]
	for _, src := range a.order {
		buf := a.buffers[src]
		fresh := buf[:0]
		for _, s := range buf {
			if s.Timestamp >= cutoff {
				fresh = append(fresh, s)
			}
		}
		if len(fresh) == 0 {
			delete(a.buffers, src)
			continue
		}
		a.buffers[src] = fresh
		kept = append(kept, src)
	}
	a.order = kept
}

// Statistics summarizes every buffered value. An empty buffer yields zeroes.
func (a *SignalAggregator) Statistics() models.SignalStatistics {
	vals := values(a.AllSignals())
	if len(vals) == 0 {
		return models.SignalStatistics{}
	}
	mean, std := features.MeanStdDev(vals)
	lo, hi := features.MinMax(vals)
	return models.SignalStatistics{
		Count:       len(vals),
		Mean:        mean,
		Median:      features.Median(vals),
		StdDev:      std,
		Min:         lo,
		Max:         hi,
		SourceCount: a.SourceDiversity(),
	}
}

func (a *SignalAggregator) collect(keep func(models.BeliefSignal) bool) []models.BeliefSignal {
	out := make([]models.BeliefSignal, 0, a.TotalSignalCount())
	for _, src := range a.order {
		for _, s := range a.buffers[src] {
			if keep(s) {
				out = append(out, s.Clone())
			}
		}
	}
	return out
}

func values(signals []models.BeliefSignal) []float64 {
	out := make([]float64, len(signals))
	for i, s := range signals {
		out[i] = s.Value
	}
	return out
}
