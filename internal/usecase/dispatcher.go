package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	applogger "Preda/pkg/logger"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// InflectionDispatcher routes inflection events and index updates to the
// configured backend. Events go out one by one; updates are batched by size
// and timeout. Dispatch and HandleUpdate never block the caller.
type InflectionDispatcher struct {
	backend string
	pub     drepo.Publisher
	archive drepo.IndexArchive
	metrics drepo.Metrics
	log     *applogger.Logger
	batchSz int
	batchTO time.Duration

	events  chan models.InflectionEvent
	updates chan models.BsiUpdate

	once sync.Once
	done chan struct{}
}

func NewInflectionDispatcher(
	backend string,
	pub drepo.Publisher,
	archive drepo.IndexArchive,
	metrics drepo.Metrics,
	log *applogger.Logger,
	batchSz int,
	batchTO time.Duration,
) (*InflectionDispatcher, error) {
	switch backend {
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %s requires a publisher", backend)
		}
	case BackendClickHouse:
		if archive == nil {
			return nil, fmt.Errorf("backend %s requires an archive", backend)
		}
	case BackendNone, "":
		backend = BackendNone
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if batchSz <= 0 {
		batchSz = 100
	}
	if batchTO <= 0 {
		batchTO = 2 * time.Second
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &InflectionDispatcher{
		backend: backend,
		pub:     pub,
		archive: archive,
		metrics: metrics,
		log:     log.With(applogger.String("component", "dispatcher"), applogger.String("backend", backend)),
		batchSz: batchSz,
		batchTO: batchTO,
		events:  make(chan models.InflectionEvent, 1024),
		updates: make(chan models.BsiUpdate, batchSz*4),
		done:    make(chan struct{}),
	}, nil
}

func (d *InflectionDispatcher) Backend() string { return d.backend }

// Dispatch queues ev for delivery.
func (d *InflectionDispatcher) Dispatch(ev models.InflectionEvent) {
	select {
	case d.events <- ev:
	default:
		d.metrics.RecordError("dispatch_events_full")
		d.log.Warn("event queue full, dropping", applogger.String("id", ev.ID), applogger.String("status", string(ev.Status)))
	}
}

// HandleUpdate queues u for the next batch.
func (d *InflectionDispatcher) HandleUpdate(_ context.Context, u models.BsiUpdate) {
	if d.backend == BackendNone {
		return
	}
	select {
	case d.updates <- u:
	default:
		d.metrics.RecordError("dispatch_updates_full")
	}
}

// Run delivers queued work until ctx ends, then drains what is left.
func (d *InflectionDispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.batchTO)
	defer ticker.Stop()

	batch := make([]models.BsiUpdate, 0, d.batchSz)
	for {
		select {
		case <-ctx.Done():
			d.drain(batch)
			return
		case ev := <-d.events:
			d.send(ctx, ev)
		case u := <-d.updates:
			batch = append(batch, u)
			if len(batch) >= d.batchSz {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait blocks until Run has returned.
func (d *InflectionDispatcher) Wait() { <-d.done }

func (d *InflectionDispatcher) drain(batch []models.BsiUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-d.events:
			d.send(ctx, ev)
		case u := <-d.updates:
			batch = append(batch, u)
		default:
			d.flush(ctx, batch)
			return
		}
	}
}

func (d *InflectionDispatcher) send(ctx context.Context, ev models.InflectionEvent) {
	start := time.Now()
	var err error
	switch d.backend {
	case BackendKafka:
		err = d.pub.PublishInflection(ctx, ev)
	case BackendClickHouse:
		err = d.archive.StoreInflection(ctx, ev)
	default:
		return
	}
	if err != nil {
		d.metrics.RecordError("dispatch_event")
		d.log.Error("dispatch inflection failed",
			applogger.String("id", ev.ID),
			applogger.String("domain", ev.Domain),
			applogger.Error(err))
		return
	}
	d.metrics.RecordMessageSent(d.backend, ev.Domain)
	d.metrics.RecordLatency("dispatch_event", time.Since(start).Seconds())
}

func (d *InflectionDispatcher) flush(ctx context.Context, batch []models.BsiUpdate) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	var err error
	switch d.backend {
	case BackendKafka:
		err = d.pub.PublishUpdates(ctx, batch)
	case BackendClickHouse:
		idx := make([]models.BeliefStateIndex, len(batch))
		for i, u := range batch {
			idx[i] = u.Bsi
		}
		err = d.archive.StoreIndexBatch(ctx, idx)
	default:
		return
	}
	if err != nil {
		d.metrics.RecordError("dispatch_batch")
		d.log.Error("dispatch batch failed", applogger.Int("size", len(batch)), applogger.Error(err))
		return
	}
	for _, u := range batch {
		d.metrics.RecordMessageSent(d.backend, u.Bsi.Domain)
	}
	d.metrics.RecordLatency("dispatch_batch", time.Since(start).Seconds())
}

// Close releases the backend clients.
func (d *InflectionDispatcher) Close() {
	d.once.Do(func() {
		if d.pub != nil {
			_ = d.pub.Close()
		}
		if d.archive != nil {
			_ = d.archive.Close()
		}
	})
}
