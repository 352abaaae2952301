package repository

import (
	"context"

	"Preda/internal/domain/models"
	"Preda/internal/domain/repository"
	pkgkafka "Preda/pkg/kafka"
)

// KafkaPublisher publishes index updates and inflection events keyed by
// domain, so each domain stays ordered within its partition.
type KafkaPublisher struct {
	producer         *pkgkafka.Producer
	updatesTopic     string
	inflectionsTopic string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, updatesTopic, inflectionsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, updatesTopic: updatesTopic, inflectionsTopic: inflectionsTopic}
}

func (p *KafkaPublisher) PublishUpdates(ctx context.Context, us []models.BsiUpdate) error {
	if len(us) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(us))
	for i, u := range us {
		msgs[i] = pkgkafka.Message{Key: []byte(u.Bsi.Domain), Value: u}
	}
	return p.producer.PublishBatch(ctx, p.updatesTopic, msgs)
}

func (p *KafkaPublisher) PublishInflection(ctx context.Context, ev models.InflectionEvent) error {
	return p.producer.Publish(ctx, p.inflectionsTopic, []byte(ev.Domain), ev)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ repository.Publisher = (*KafkaPublisher)(nil)
