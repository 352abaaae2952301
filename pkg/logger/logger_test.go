package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("domain", "BTC"))

	l.Info("bsi computed", Float64("value", 0.25), Uint32("signals", 4), Bool("inflection", false))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bsi computed", line["message"])
	assert.Equal(t, "BTC", line["domain"])
	assert.Equal(t, 0.25, line["value"])
	assert.Equal(t, float64(4), line["signals"])
	assert.Equal(t, false, line["inflection"])
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := Nop()
	l.Debug("x")
	l.Error("y", Error(errors.New("boom")))
}

type recordingPublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorDeduplicatesErrors(t *testing.T) {
	pub := &recordingPublisher{}
	l := NewWriter(&bytes.Buffer{})
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "preda.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("oracle query failed", String("source", "sentiment_oracle"))
	}
	l.Error("oracle query failed", String("source", "narrative_oracle"))
	require.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "preda.logs", pub.topic)
	total := 0
	for _, e := range pub.batches[0] {
		total += e.Count
	}
	assert.Equal(t, 4, total)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Zero(t, c.Pending())
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
}
