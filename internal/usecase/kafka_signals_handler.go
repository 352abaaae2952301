package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Preda/internal/domain/models"
	domrepo "Preda/internal/domain/repository"
	mid "Preda/internal/middleware"
	pkgkafka "Preda/pkg/kafka"
)

// KafkaSignalsHandler feeds the signals topic into the pipeline. A message
// holds one envelope or a JSON array of them.
type KafkaSignalsHandler struct {
	topic   string
	pipe    *mid.SignalPipeline
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, pipe *mid.SignalPipeline, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle rejects the whole message when any envelope is malformed so the
// consumer can route it to the DLQ.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	envs, err := decodeEnvelopes(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	for i := range envs {
		if err := mid.ValidateEnvelope(&envs[i]); err != nil {
			h.metrics.RecordError("consumer_invalid")
			return err
		}
	}
	for i := range envs {
		env := &envs[i]
		if env.Timestamp > 0 {
			h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(env.Timestamp, 0)).Seconds())
		}
		if err := h.pipe.Process(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func decodeEnvelopes(b []byte) ([]models.SignalEnvelope, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if b[0] == '[' {
		var envs []models.SignalEnvelope
		if err := json.Unmarshal(b, &envs); err != nil {
			return nil, fmt.Errorf("decode envelopes: %w", err)
		}
		return envs, nil
	}
	var env models.SignalEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return []models.SignalEnvelope{env}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
