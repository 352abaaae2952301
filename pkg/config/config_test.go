package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Preda/internal/bsi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
engine:
  domains: ["BTC"]
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "none", c.Backend.Type)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, bsi.DefaultConfig(), c.BSI)
	assert.Equal(t, 0.5, c.Monitor.Threshold)
	assert.Equal(t, int64(300), c.Monitor.MinPersistence)
	assert.Equal(t, time.Hour, c.Engine.ValidationTimeout)
	assert.Equal(t, "preda.signals", c.Kafka.Topics.Signals)
	assert.True(t, c.Oracles.Sentiment.Enabled)
	assert.Equal(t, "info", c.Log.Level)
}

func TestParseOverridesBSI(t *testing.T) {
	c, err := Parse([]byte(minimal + `
bsi:
  smoothing_window: 120
  signal_weights:
    narrative: 0.5
`))
	require.NoError(t, err)
	assert.Equal(t, int64(120), c.BSI.SmoothingWindow)
	assert.Equal(t, 0.5, c.BSI.SignalWeights.Narrative)
	assert.Equal(t, 1.5, c.BSI.SignalWeights.ModelForecast)
}

func TestParseRejectsInvalidBSI(t *testing.T) {
	_, err := Parse([]byte(minimal + `
bsi:
  decay_factor: 1.5
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bsi.ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no domains":      `engine: {domains: []}`,
		"bad backend":     minimal + "backend: {type: s3}",
		"kafka no broker": minimal + "backend: {type: kafka}",
		"stream no url":   minimal + "stream: {enabled: true}",
		"zero threshold":  minimal + "monitor: {threshold: -1}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"PREDA_DOMAINS": "SOL, DOGE ,",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"BACKEND":       "kafka",
		"REDIS_ADDR":    "redis:6379",
		"PORT":          "9999",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"SOL", "DOGE"}, c.Engine.Domains)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "kafka", c.Backend.Type)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 9999, c.Server.Port)
	assert.NoError(t, c.Validate())
}

func TestLoadExampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, c.Engine.Domains)
	assert.Equal(t, "https://api.preda.io/consensus", c.Oracles.Consensus.Endpoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
