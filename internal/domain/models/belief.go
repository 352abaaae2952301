package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SignalType classifies a belief signal. Values are fixed discriminants and
// must not be reordered.
type SignalType int

const (
	SignalSentiment SignalType = iota
	SignalProbability
	SignalNarrative
	SignalModelForecast
	SignalConsensusMetric
)

// SignalTypes lists every signal type in discriminant order.
var SignalTypes = []SignalType{
	SignalSentiment,
	SignalProbability,
	SignalNarrative,
	SignalModelForecast,
	SignalConsensusMetric,
}

var signalTypeNames = map[SignalType]string{
	SignalSentiment:       "sentiment",
	SignalProbability:     "probability",
	SignalNarrative:       "narrative",
	SignalModelForecast:   "model_forecast",
	SignalConsensusMetric: "consensus_metric",
}

func (t SignalType) String() string {
	if s, ok := signalTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("signal_type(%d)", int(t))
}

// Valid reports whether t is one of the closed set of signal types.
func (t SignalType) Valid() bool {
	_, ok := signalTypeNames[t]
	return ok
}

// ParseSignalType accepts the snake_case name of a signal type.
func ParseSignalType(s string) (SignalType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range signalTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown signal type %q", s)
}

// UnmarshalJSON decodes either the numeric discriminant or the type name.
func (t *SignalType) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		st := SignalType(n)
		if !st.Valid() {
			return fmt.Errorf("unknown signal type %d", n)
		}
		*t = st
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("signal type: %w", err)
	}
	st, err := ParseSignalType(s)
	if err != nil {
		return err
	}
	*t = st
	return nil
}

// MetadataEntry is one key/value pair of signal metadata.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BeliefSignal is one weighted, timestamped observation from a source.
// Metadata keeps insertion order and may repeat keys.
type BeliefSignal struct {
	Source     string          `json:"source"`
	SignalType SignalType      `json:"signal_type"`
	Value      float64         `json:"value"`
	Weight     float64         `json:"weight"`
	Timestamp  int64           `json:"timestamp"`
	Metadata   []MetadataEntry `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no metadata storage with s.
func (s BeliefSignal) Clone() BeliefSignal {
	if s.Metadata != nil {
		md := make([]MetadataEntry, len(s.Metadata))
		copy(md, s.Metadata)
		s.Metadata = md
	}
	return s
}

// MetadataValue returns the first value stored under key.
func (s BeliefSignal) MetadataValue(key string) (string, bool) {
	for _, e := range s.Metadata {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// BeliefStateIndex is one fused sample of belief for a domain.
type BeliefStateIndex struct {
	Value       float64 `json:"value"`
	Velocity    float64 `json:"velocity"`
	Volatility  float64 `json:"volatility"`
	Confidence  float64 `json:"confidence"`
	SignalCount uint32  `json:"signal_count"`
	Domain      string  `json:"domain"`
	LastUpdated int64   `json:"last_updated"`
}

func (b BeliefStateIndex) IsBullish() bool { return b.Value > 0.3 }

func (b BeliefStateIndex) IsBearish() bool { return b.Value < -0.3 }

func (b BeliefStateIndex) IsNeutral() bool { return b.Value >= -0.3 && b.Value <= 0.3 }

func (b BeliefStateIndex) IsAccelerating() bool { return b.Velocity > 0.1 || b.Velocity < -0.1 }

func (b BeliefStateIndex) IsVolatile() bool { return b.Volatility > 0.5 }

// InflectionType classifies a detected inflection. Values are fixed discriminants.
type InflectionType int

const (
	InflectionSentimentReversal InflectionType = iota
	InflectionThresholdCrossing
	// InflectionConsensusFormation is reserved; no detector emits it.
	InflectionConsensusFormation
	// InflectionConsensusFragmentation is reserved; no detector emits it.
	InflectionConsensusFragmentation
	InflectionVelocitySpike
	// InflectionVelocityStabilization is reserved; no detector emits it.
	InflectionVelocityStabilization
)

var inflectionTypeNames = map[InflectionType]string{
	InflectionSentimentReversal:      "sentiment_reversal",
	InflectionThresholdCrossing:      "threshold_crossing",
	InflectionConsensusFormation:     "consensus_formation",
	InflectionConsensusFragmentation: "consensus_fragmentation",
	InflectionVelocitySpike:          "velocity_spike",
	InflectionVelocityStabilization:  "velocity_stabilization",
}

func (t InflectionType) String() string {
	if s, ok := inflectionTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("inflection_type(%d)", int(t))
}

// ParseInflectionType accepts the snake_case name of an inflection type.
func ParseInflectionType(s string) (InflectionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range inflectionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown inflection type %q", s)
}

// UnmarshalJSON decodes either the numeric discriminant or the type name.
func (t *InflectionType) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		it := InflectionType(n)
		if _, ok := inflectionTypeNames[it]; !ok {
			return fmt.Errorf("unknown inflection type %d", n)
		}
		*t = it
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("inflection type: %w", err)
	}
	it, err := ParseInflectionType(s)
	if err != nil {
		return err
	}
	*t = it
	return nil
}

// BeliefInflection is one detected structural change in the index series.
// Validated stays false until a persistence check succeeds.
type BeliefInflection struct {
	InflectionType      InflectionType `json:"inflection_type"`
	Timestamp           int64          `json:"timestamp"`
	BsiValue            float64        `json:"bsi_value"`
	Velocity            float64        `json:"velocity"`
	Sharpness           float64        `json:"sharpness"`
	PersistenceDuration int64          `json:"persistence_duration"`
	Validated           bool           `json:"validated"`
}

// SignalStatistics summarizes every buffered signal value.
type SignalStatistics struct {
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SourceCount int     `json:"source_count"`
}
