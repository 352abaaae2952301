package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalTypeJSON(t *testing.T) {
	var s BeliefSignal
	require.NoError(t, json.Unmarshal([]byte(`{"source":"a","signal_type":3,"value":0.1,"weight":1}`), &s))
	assert.Equal(t, SignalModelForecast, s.SignalType)

	require.NoError(t, json.Unmarshal([]byte(`{"signal_type":"Consensus_Metric"}`), &s))
	assert.Equal(t, SignalConsensusMetric, s.SignalType)

	assert.Error(t, json.Unmarshal([]byte(`{"signal_type":9}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"signal_type":"vibes"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"signal_type":true}`), &s))

	b, err := json.Marshal(BeliefSignal{SignalType: SignalNarrative})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"signal_type":2`)
}

func TestSignalTypeNames(t *testing.T) {
	for _, st := range SignalTypes {
		parsed, err := ParseSignalType(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
		assert.True(t, st.Valid())
	}
	assert.False(t, SignalType(42).Valid())
	assert.Equal(t, "signal_type(42)", SignalType(42).String())
}

func TestInflectionTypeJSON(t *testing.T) {
	var inf BeliefInflection
	require.NoError(t, json.Unmarshal([]byte(`{"inflection_type":"velocity_spike"}`), &inf))
	assert.Equal(t, InflectionVelocitySpike, inf.InflectionType)

	require.NoError(t, json.Unmarshal([]byte(`{"inflection_type":1}`), &inf))
	assert.Equal(t, InflectionThresholdCrossing, inf.InflectionType)

	assert.Error(t, json.Unmarshal([]byte(`{"inflection_type":6}`), &inf))
	assert.Error(t, json.Unmarshal([]byte(`{"inflection_type":"collapse"}`), &inf))

	it, err := ParseInflectionType(" Sentiment_Reversal ")
	require.NoError(t, err)
	assert.Equal(t, InflectionSentimentReversal, it)
	assert.Equal(t, "inflection_type(-1)", InflectionType(-1).String())
}

func TestBeliefStateIndexClassification(t *testing.T) {
	cases := []struct {
		value                     float64
		bullish, bearish, neutral bool
	}{
		{0.31, true, false, false},
		{0.3, false, false, true},
		{-0.3, false, false, true},
		{-0.31, false, true, false},
	}
	for _, c := range cases {
		b := BeliefStateIndex{Value: c.value}
		assert.Equal(t, c.bullish, b.IsBullish(), "bullish %v", c.value)
		assert.Equal(t, c.bearish, b.IsBearish(), "bearish %v", c.value)
		assert.Equal(t, c.neutral, b.IsNeutral(), "neutral %v", c.value)
	}

	assert.True(t, BeliefStateIndex{Velocity: -0.2}.IsAccelerating())
	assert.False(t, BeliefStateIndex{Velocity: 0.1}.IsAccelerating())
	assert.True(t, BeliefStateIndex{Volatility: 0.51}.IsVolatile())
	assert.False(t, BeliefStateIndex{Volatility: 0.5}.IsVolatile())
}

func TestBeliefSignalCloneAndMetadata(t *testing.T) {
	s := BeliefSignal{Metadata: []MetadataEntry{{"lang", "en"}, {"lang", "fr"}}}
	c := s.Clone()
	c.Metadata[0].Value = "de"

	v, ok := s.MetadataValue("lang")
	require.True(t, ok)
	assert.Equal(t, "en", v, "first value wins and the clone is independent")

	_, ok = s.MetadataValue("missing")
	assert.False(t, ok)
	assert.Nil(t, BeliefSignal{}.Clone().Metadata)
}
