package bsi

import (
	"math"
	"sync"

	"Preda/internal/domain/models"
	domsvc "Preda/internal/domain/service"
)

const (
	// minDetectionHistory gates the reversal and velocity detectors.
	minDetectionHistory = 3
	// detectionLookback is the trailing window averaged by the detectors.
	detectionLookback = 10
	// minSpikeThreshold suppresses spikes against a near-zero baseline.
	minSpikeThreshold = 0.1
)

// PersistenceCheck is the outcome of a persistence inspection.
type PersistenceCheck struct {
	Samples   int   `json:"samples"`
	Duration  int64 `json:"duration"`
	Persisted bool  `json:"persisted"`
}

// Apply stamps the check's duration and verdict on inf.
func (pc PersistenceCheck) Apply(inf models.BeliefInflection) models.BeliefInflection {
	inf.PersistenceDuration = pc.Duration
	inf.Validated = pc.Persisted
	return inf
}

// Monitor detects inflections in a stream of index samples and notifies
// subscribers. Safe for concurrent use.
//
// Subscribers run after the history lock is released but before Update
// returns, in registration order.
type Monitor struct {
	threshold      float64
	minPersistence int64

	mu      sync.RWMutex
	history []models.BeliefStateIndex

	subMu       sync.RWMutex
	subscribers []domsvc.InflectionSubscriber
}

func NewMonitor(threshold float64, minPersistence int64) *Monitor {
	return &Monitor{threshold: threshold, minPersistence: minPersistence}
}

func (m *Monitor) Threshold() float64 { return m.threshold }

func (m *Monitor) MinPersistence() int64 { return m.minPersistence }

// OnInflection registers s for every future detection.
func (m *Monitor) OnInflection(s domsvc.InflectionSubscriber) {
	if s == nil {
		return
	}
	m.subMu.Lock()
	m.subscribers = append(m.subscribers, s)
	m.subMu.Unlock()
}

// Update appends sample to the history and runs the detectors. At most one
// inflection is reported per call.
func (m *Monitor) Update(sample models.BeliefStateIndex) (models.BeliefInflection, bool) {
	m.mu.Lock()
	m.history = appendBounded(m.history, sample)
	inf, ok := m.detect(m.history, sample)
	m.mu.Unlock()

	if ok {
		m.notify(inf)
	}
	return inf, ok
}

func (m *Monitor) notify(inf models.BeliefInflection) {
	m.subMu.RLock()
	subs := append([]domsvc.InflectionSubscriber(nil), m.subscribers...)
	m.subMu.RUnlock()
	for _, s := range subs {
		s.Notify(inf)
	}
}

// detect runs reversal, crossing, then spike; history ends with current.
func (m *Monitor) detect(history []models.BeliefStateIndex, current models.BeliefStateIndex) (models.BeliefInflection, bool) {
	if len(history) >= minDetectionHistory {
		if inf, ok := m.sentimentReversal(history, current); ok {
			return inf, true
		}
	}
	if inf, ok := m.thresholdCrossing(history, current); ok {
		return inf, true
	}
	if len(history) >= minDetectionHistory {
		if inf, ok := m.velocitySpike(history, current); ok {
			return inf, true
		}
	}
	return models.BeliefInflection{}, false
}

func (m *Monitor) sentimentReversal(history []models.BeliefStateIndex, current models.BeliefStateIndex) (models.BeliefInflection, bool) {
	pastAvg := trailingMean(history, func(b models.BeliefStateIndex) float64 { return b.Value })
	if (pastAvg > 0 && current.Value < -m.threshold) || (pastAvg < 0 && current.Value > m.threshold) {
		return newInflection(models.InflectionSentimentReversal, current, math.Abs(current.Value-pastAvg)), true
	}
	return models.BeliefInflection{}, false
}

func (m *Monitor) thresholdCrossing(history []models.BeliefStateIndex, current models.BeliefStateIndex) (models.BeliefInflection, bool) {
	if len(history) < 2 {
		return models.BeliefInflection{}, false
	}
	prev := history[len(history)-2]
	up := prev.Value < m.threshold && current.Value >= m.threshold
	down := prev.Value > -m.threshold && current.Value <= -m.threshold
	if up || down {
		return newInflection(models.InflectionThresholdCrossing, current, math.Abs(current.Value-prev.Value)), true
	}
	return models.BeliefInflection{}, false
}

func (m *Monitor) velocitySpike(history []models.BeliefStateIndex, current models.BeliefStateIndex) (models.BeliefInflection, bool) {
	avg := trailingMean(history, func(b models.BeliefStateIndex) float64 { return b.Velocity })
	limit := 2 * math.Abs(avg)
	if math.Abs(current.Velocity) > limit && limit > minSpikeThreshold {
		return newInflection(models.InflectionVelocitySpike, current, math.Abs(current.Velocity-avg)), true
	}
	return models.BeliefInflection{}, false
}

func newInflection(t models.InflectionType, current models.BeliefStateIndex, sharpness float64) models.BeliefInflection {
	return models.BeliefInflection{
		InflectionType: t,
		Timestamp:      current.LastUpdated,
		BsiValue:       current.Value,
		Velocity:       current.Velocity,
		Sharpness:      sharpness,
	}
}

func trailingMean(history []models.BeliefStateIndex, field func(models.BeliefStateIndex) float64) float64 {
	start := len(history) - detectionLookback
	if start < 0 {
		start = 0
	}
	tail := history[start:]
	if len(tail) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range tail {
		sum += field(b)
	}
	return sum / float64(len(tail))
}

// CheckPersistence inspects samples stamped at or after the inflection.
func (m *Monitor) CheckPersistence(inf models.BeliefInflection) PersistenceCheck {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var post []models.BeliefStateIndex
	for _, b := range m.history {
		if b.LastUpdated >= inf.Timestamp {
			post = append(post, b)
		}
	}
	if len(post) == 0 {
		return PersistenceCheck{}
	}
	duration := post[len(post)-1].LastUpdated - inf.Timestamp

	held := true
	switch inf.InflectionType {
	case models.InflectionSentimentReversal:
		for _, b := range post {
			if !sameSign(inf.BsiValue, b.Value) {
				held = false
				break
			}
		}
	case models.InflectionThresholdCrossing:
		for _, b := range post {
			above := inf.BsiValue >= m.threshold && b.Value >= m.threshold
			below := inf.BsiValue <= -m.threshold && b.Value <= -m.threshold
			if !above && !below {
				held = false
				break
			}
		}
	default:
		// TODO: velocity spikes need their own persistence rule; until then
		// every other type counts as persisted.
	}

	return PersistenceCheck{
		Samples:   len(post),
		Duration:  duration,
		Persisted: held && duration >= m.minPersistence,
	}
}

// ValidatePersistence reports whether inf held for at least the minimum
// persistence duration.
func (m *Monitor) ValidatePersistence(inf models.BeliefInflection) bool {
	return m.CheckPersistence(inf).Persisted
}

// Validate returns a copy of inf with Validated and PersistenceDuration filled in.
func (m *Monitor) Validate(inf models.BeliefInflection) (models.BeliefInflection, bool) {
	pc := m.CheckPersistence(inf)
	return pc.Apply(inf), pc.Persisted
}

func (m *Monitor) History() []models.BeliefStateIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.BeliefStateIndex(nil), m.history...)
}

func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

func (m *Monitor) ClearHistory() {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
