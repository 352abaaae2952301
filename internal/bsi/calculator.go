package bsi

import (
	"math"
	"time"

	"Preda/internal/domain/models"
	"Preda/internal/services/features"
)

// MaxHistory bounds both the calculator and monitor sample histories.
const MaxHistory = 1000

// minOutlierBatch is the smallest batch the z-score filter is applied to.
const minOutlierBatch = 3

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithCalculatorClock replaces the clock used to stamp LastUpdated.
func WithCalculatorClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Calculator fuses signal batches into index samples and keeps a bounded
// trailing series for velocity. It is not safe for concurrent use.
type Calculator struct {
	cfg     Config
	history []models.BeliefStateIndex
	now     func() time.Time
}

func NewCalculator(cfg Config, opts ...CalculatorOption) *Calculator {
	c := &Calculator{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Calculator) Config() Config { return c.cfg }

// Calculate produces one sample from signals and appends it to the history.
func (c *Calculator) Calculate(signals []models.BeliefSignal, domain string) models.BeliefStateIndex {
	filtered := c.FilterOutliers(signals)

	value := c.weightedValue(filtered)
	vals := values(filtered)
	volatility := 0.0
	if len(vals) >= 2 {
		_, volatility = features.MeanStdDev(vals)
	}

	idx := models.BeliefStateIndex{
		Value:       value,
		Velocity:    c.velocity(value),
		Volatility:  volatility,
		Confidence:  c.confidence(len(filtered), volatility),
		SignalCount: uint32(len(filtered)),
		Domain:      domain,
		LastUpdated: c.now().Unix(),
	}
	c.history = appendBounded(c.history, idx)
	return idx
}

// FilterOutliers drops signals whose z-score exceeds the outlier threshold.
// Batches under three signals pass through untouched; a zero spread keeps all.
func (c *Calculator) FilterOutliers(signals []models.BeliefSignal) []models.BeliefSignal {
	if len(signals) < minOutlierBatch {
		return append([]models.BeliefSignal(nil), signals...)
	}
	mean, std := features.MeanStdDev(values(signals))
	out := make([]models.BeliefSignal, 0, len(signals))
	for _, s := range signals {
		z := 0.0
		if std > 0 {
			z = math.Abs(s.Value-mean) / std
		}
		if z <= c.cfg.OutlierThreshold {
			out = append(out, s)
		}
	}
	return out
}

func (c *Calculator) weightedValue(signals []models.BeliefSignal) float64 {
	var sum, total float64
	for _, s := range signals {
		w := s.Weight * c.cfg.SignalWeights.For(s.SignalType)
		sum += s.Value * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// velocity treats sample count as elapsed time; it assumes a steady cadence.
func (c *Calculator) velocity(current float64) float64 {
	n := len(c.history)
	if n == 0 {
		return 0
	}
	window := int(c.cfg.SmoothingWindow / 60)
	if window < 1 {
		window = 1
	}
	lookback := n - window
	if lookback < 0 {
		lookback = 0
	}
	return (current - c.history[lookback].Value) / float64(n-lookback)
}

func (c *Calculator) confidence(count int, volatility float64) float64 {
	countFactor := 0.0
	if c.cfg.MinSignalCount > 0 {
		countFactor = math.Min(1, float64(count)/float64(c.cfg.MinSignalCount))
	}
	spreadFactor := math.Max(0, 1-volatility)
	return features.Clamp(0.6*countFactor+0.4*spreadFactor, 0, 1)
}

// ApplyDecay scales every retained sample's value and velocity by the decay factor.
func (c *Calculator) ApplyDecay() {
	for i := range c.history {
		c.history[i].Value *= c.cfg.DecayFactor
		c.history[i].Velocity *= c.cfg.DecayFactor
	}
}

func (c *Calculator) History() []models.BeliefStateIndex {
	return append([]models.BeliefStateIndex(nil), c.history...)
}

func (c *Calculator) ClearHistory() { c.history = nil }

func appendBounded(h []models.BeliefStateIndex, s models.BeliefStateIndex) []models.BeliefStateIndex {
	if len(h) >= MaxHistory {
		h = append(h[:0:0], h[len(h)-MaxHistory+1:]...)
	}
	return append(h, s)
}
