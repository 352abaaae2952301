package bsi

import (
	"testing"
	"time"

	"Preda/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func sig(source string, t models.SignalType, value float64, ts int64) models.BeliefSignal {
	return models.BeliefSignal{Source: source, SignalType: t, Value: value, Weight: 1, Timestamp: ts}
}

func TestAggregatorEvictsOldestPerSource(t *testing.T) {
	a := NewSignalAggregator(3)
	for i := 1; i <= 4; i++ {
		a.AddSignal(sig("a", models.SignalSentiment, float64(i), int64(i)))
	}
	a.AddSignal(sig("b", models.SignalSentiment, 9, 9))

	got := a.SignalsBySource("a")
	require.Len(t, got, 3)
	assert.Equal(t, []float64{2, 3, 4}, values(got))
	assert.Len(t, a.SignalsBySource("b"), 1)
	assert.Equal(t, 4, a.TotalSignalCount())
}

func TestAggregatorBufferNeverExceedsCap(t *testing.T) {
	a := NewSignalAggregator(5)
	for i := 0; i < 50; i++ {
		a.AddSignal(sig("a", models.SignalSentiment, float64(i), int64(i)))
		assert.LessOrEqual(t, len(a.SignalsBySource("a")), 5)
	}
	assert.Equal(t, []float64{45, 46, 47, 48, 49}, values(a.SignalsBySource("a")))
}

func TestAggregatorReturnsCopies(t *testing.T) {
	a := NewSignalAggregator(10)
	s := sig("a", models.SignalNarrative, 0.2, 1)
	s.Metadata = []models.MetadataEntry{{Key: "k", Value: "v"}}
	a.AddSignal(s)

	got := a.AllSignals()
	got[0].Metadata[0].Value = "changed"
	got[0].Value = 99

	again := a.SignalsBySource("a")
	assert.Equal(t, "v", again[0].Metadata[0].Value)
	assert.Equal(t, 0.2, again[0].Value)
}

func TestAggregatorFilters(t *testing.T) {
	a := NewSignalAggregator(10, WithAggregatorClock(fixedClock(1000)))
	a.AddSignals([]models.BeliefSignal{
		sig("a", models.SignalSentiment, 0.2, 850),
		sig("a", models.SignalProbability, 0.4, 950),
		sig("b", models.SignalSentiment, 0.6, 990),
	})

	assert.Len(t, a.SignalsByType(models.SignalSentiment), 2)
	assert.Empty(t, a.SignalsByType(models.SignalConsensusMetric))
	assert.Equal(t, []float64{0.4, 0.6}, values(a.RecentSignals(100)))

	avg, ok := a.AverageByType(models.SignalSentiment)
	require.True(t, ok)
	assert.InDelta(t, 0.4, avg, 1e-12)

	_, ok = a.AverageByType(models.SignalModelForecast)
	assert.False(t, ok)
}

func TestAggregatorClearOldSignalsDropsEmptySources(t *testing.T) {
	a := NewSignalAggregator(10, WithAggregatorClock(fixedClock(1000)))
	a.AddSignal(sig("stale", models.SignalSentiment, 0.1, 100))
	a.AddSignal(sig("mixed", models.SignalSentiment, 0.2, 100))
	a.AddSignal(sig("mixed", models.SignalSentiment, 0.3, 990))
	require.Equal(t, 2, a.SourceDiversity())

	a.ClearOldSignals(60)

	assert.Equal(t, 1, a.SourceDiversity())
	assert.Empty(t, a.SignalsBySource("stale"))
	assert.Equal(t, []float64{0.3}, values(a.AllSignals()))

	a.Clear()
	assert.Zero(t, a.SourceDiversity())
	assert.Zero(t, a.TotalSignalCount())
}

func TestAggregatorStatistics(t *testing.T) {
	a := NewSignalAggregator(10)
	assert.Equal(t, models.SignalStatistics{}, a.Statistics())

	a.AddSignal(sig("a", models.SignalSentiment, 0.3, 1))
	a.AddSignal(sig("b", models.SignalSentiment, 0.5, 1))
	a.AddSignal(sig("c", models.SignalSentiment, 0.7, 1))

	st := a.Statistics()
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 3, st.SourceCount)
	assert.InDelta(t, 0.5, st.Median, 1e-12)
	assert.InDelta(t, 0.5, st.Mean, 1e-12)
	assert.Equal(t, 0.3, st.Min)
	assert.Equal(t, 0.7, st.Max)
	assert.Greater(t, st.StdDev, 0.0)

	b := NewSignalAggregator(10)
	b.AddSignal(sig("a", models.SignalSentiment, 0.3, 1))
	b.AddSignal(sig("a", models.SignalSentiment, 0.5, 1))
	assert.InDelta(t, 0.4, b.Statistics().Median, 1e-12)
	assert.Equal(t, 1, b.Statistics().SourceCount)
}
