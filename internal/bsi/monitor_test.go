package bsi

import (
	"sync"
	"testing"

	"Preda/internal/domain/models"
	domsvc "Preda/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(value, velocity float64, ts int64) models.BeliefStateIndex {
	return models.BeliefStateIndex{Value: value, Velocity: velocity, Confidence: 0.8, SignalCount: 5, Domain: "BTC", LastUpdated: ts}
}

func TestThresholdCrossingOnSecondUpdate(t *testing.T) {
	m := NewMonitor(0.5, 60)

	_, ok := m.Update(sample(0.3, 0, 1000))
	assert.False(t, ok)

	inf, ok := m.Update(sample(0.6, 0.1, 1100))
	require.True(t, ok)
	assert.Equal(t, models.InflectionThresholdCrossing, inf.InflectionType)
	assert.Equal(t, int64(1100), inf.Timestamp)
	assert.Equal(t, 0.6, inf.BsiValue)
	assert.InDelta(t, 0.3, inf.Sharpness, 1e-12)
	assert.False(t, inf.Validated)
	assert.Zero(t, inf.PersistenceDuration)
}

func TestDownwardThresholdCrossing(t *testing.T) {
	m := NewMonitor(0.5, 60)
	m.Update(sample(-0.2, 0, 1000))
	inf, ok := m.Update(sample(-0.5, 0, 1010))
	require.True(t, ok)
	assert.Equal(t, models.InflectionThresholdCrossing, inf.InflectionType)
}

func TestSentimentReversalTakesPriority(t *testing.T) {
	m := NewMonitor(0.5, 60)
	for i := int64(0); i < 3; i++ {
		_, ok := m.Update(sample(0.4, 0, 1000+i))
		require.False(t, ok)
	}

	inf, ok := m.Update(sample(-0.6, 0, 1010))
	require.True(t, ok)
	assert.Equal(t, models.InflectionSentimentReversal, inf.InflectionType)
	assert.InDelta(t, 0.75, inf.Sharpness, 1e-12)
}

func TestReversalNeedsThreeSamples(t *testing.T) {
	m := NewMonitor(0.5, 60)
	m.Update(sample(-0.6, 0, 1000))
	_, ok := m.Update(sample(0.4, 0, 1001))
	assert.False(t, ok)
}

func TestVelocitySpike(t *testing.T) {
	m := NewMonitor(0.5, 60)
	for i := int64(0); i < 3; i++ {
		_, ok := m.Update(sample(0, 0.1, 1000+i))
		require.False(t, ok)
	}

	inf, ok := m.Update(sample(0, 0.5, 1010))
	require.True(t, ok)
	assert.Equal(t, models.InflectionVelocitySpike, inf.InflectionType)
	assert.InDelta(t, 0.3, inf.Sharpness, 1e-12)
}

func TestVelocitySpikeIgnoresFlatBaseline(t *testing.T) {
	m := NewMonitor(0.5, 60)
	for i := int64(0); i < 3; i++ {
		m.Update(sample(0, 0.01, 1000+i))
	}
	_, ok := m.Update(sample(0, 0.04, 1010))
	assert.False(t, ok)
}

func TestSubscribersRunInOrderBeforeUpdateReturns(t *testing.T) {
	m := NewMonitor(0.5, 60)
	var calls []string
	m.OnInflection(domsvc.SubscriberFunc(func(models.BeliefInflection) { calls = append(calls, "first") }))
	m.OnInflection(domsvc.SubscriberFunc(func(inf models.BeliefInflection) {
		// re-entering the monitor must not deadlock
		calls = append(calls, "second")
		assert.Equal(t, 2, m.Len())
		assert.False(t, inf.Validated)
	}))
	m.OnInflection(nil)

	m.Update(sample(0.3, 0, 1000))
	assert.Empty(t, calls)

	m.Update(sample(0.6, 0, 1100))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestMonitorHistoryBounded(t *testing.T) {
	m := NewMonitor(0.5, 60)
	for i := int64(1); i <= MaxHistory+1; i++ {
		m.Update(sample(0, 0, i))
	}
	h := m.History()
	require.Len(t, h, MaxHistory)
	assert.Equal(t, int64(2), h[0].LastUpdated)
	assert.Equal(t, int64(MaxHistory+1), h[len(h)-1].LastUpdated)

	m.ClearHistory()
	assert.Zero(t, m.Len())
}

func crossingMonitor(t *testing.T, later ...models.BeliefStateIndex) (*Monitor, models.BeliefInflection) {
	t.Helper()
	m := NewMonitor(0.5, 60)
	m.Update(sample(0.3, 0, 1000))
	inf, ok := m.Update(sample(0.6, 0, 1100))
	require.True(t, ok)
	for _, s := range later {
		m.Update(s)
	}
	return m, inf
}

func TestThresholdCrossingPersists(t *testing.T) {
	m, inf := crossingMonitor(t, sample(0.7, 0, 1130), sample(0.8, 0, 1200))

	pc := m.CheckPersistence(inf)
	assert.Equal(t, 3, pc.Samples)
	assert.Equal(t, int64(100), pc.Duration)
	assert.True(t, pc.Persisted)

	validated, ok := m.Validate(inf)
	require.True(t, ok)
	assert.True(t, validated.Validated)
	assert.Equal(t, int64(100), validated.PersistenceDuration)
	assert.False(t, inf.Validated)
}

func TestThresholdCrossingFallsBack(t *testing.T) {
	m, inf := crossingMonitor(t, sample(0.7, 0, 1130), sample(0.4, 0, 1150), sample(0.7, 0, 1200))
	assert.False(t, m.ValidatePersistence(inf))
}

func TestThresholdCrossingTooShort(t *testing.T) {
	m, inf := crossingMonitor(t, sample(0.7, 0, 1130))
	pc := m.CheckPersistence(inf)
	assert.Equal(t, int64(30), pc.Duration)
	assert.False(t, pc.Persisted)
}

func TestPersistenceWithoutLaterSamples(t *testing.T) {
	m, inf := crossingMonitor(t)
	inf.Timestamp = 5000
	pc := m.CheckPersistence(inf)
	assert.Zero(t, pc.Samples)
	assert.False(t, pc.Persisted)
}

func TestSentimentReversalPersistence(t *testing.T) {
	m := NewMonitor(0.5, 60)
	m.Update(sample(-0.6, 0, 1000))
	m.Update(sample(-0.2, 0, 1070))
	inf := models.BeliefInflection{InflectionType: models.InflectionSentimentReversal, Timestamp: 1000, BsiValue: -0.6}
	assert.True(t, m.ValidatePersistence(inf))

	m.Update(sample(0.1, 0, 1080))
	assert.False(t, m.ValidatePersistence(inf))
}

func TestVelocitySpikePersistsWithoutRule(t *testing.T) {
	m := NewMonitor(0.5, 60)
	m.Update(sample(0.9, 2, 1000))
	m.Update(sample(-0.9, -2, 1100))
	inf := models.BeliefInflection{InflectionType: models.InflectionVelocitySpike, Timestamp: 1000}
	assert.True(t, m.ValidatePersistence(inf))
}

func TestMonitorConcurrentUse(t *testing.T) {
	m := NewMonitor(0.5, 60)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := 0.3
				if i%2 == 1 {
					v = 0.6
				}
				m.Update(sample(v, 0, int64(g*1000+i)))
			}
		}(g)
		go func() {
			defer wg.Done()
			m.OnInflection(domsvc.SubscriberFunc(func(models.BeliefInflection) {
				_ = m.Len()
			}))
			_ = m.History()
		}()
	}
	wg.Wait()
	assert.Equal(t, MaxHistory, m.Len())
}
