package repository

import (
	"context"
	"time"

	"Preda/internal/domain/models"
)

// SignalSource produces one signal for a domain per query.
type SignalSource interface {
	Name() string
	UpdateFrequency() time.Duration
	Query(ctx context.Context, domain string) (models.BeliefSignal, error)
}

// SignalStream is a push feed of signals.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.SignalEnvelope, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher sends computed samples and inflection events to a message bus.
type Publisher interface {
	PublishUpdates(ctx context.Context, us []models.BsiUpdate) error
	PublishInflection(ctx context.Context, ev models.InflectionEvent) error
	Close() error
}

// IndexArchive stores index samples and inflection events for later reads.
// The engine never restores its state from it.
type IndexArchive interface {
	Init(ctx context.Context) error
	StoreIndex(ctx context.Context, idx models.BeliefStateIndex) error
	StoreIndexBatch(ctx context.Context, idx []models.BeliefStateIndex) error
	StoreInflection(ctx context.Context, ev models.InflectionEvent) error
	Query(ctx context.Context, domain string, from, to time.Time, tf Timeframe, limit int) ([]models.BeliefStateIndex, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordSignalsIngested(domain, source string, n int)
	RecordError(kind string)
	RecordIndex(idx models.BeliefStateIndex)
	RecordInflection(domain string, t models.InflectionType, status models.InflectionStatus)
	RecordMessageSent(backend, domain string)
	RecordLatency(op string, seconds float64)
}
