package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"Preda/internal/domain/models"
	domrepo "Preda/internal/domain/repository"
	"Preda/internal/service/ratelimit"
	applogger "Preda/pkg/logger"
)

// Sink receives signals that passed the pipeline.
type Sink interface {
	IngestSignals(ctx context.Context, domain string, signals []models.BeliefSignal) error
}

// SignalPipeline sits between the push feeds (stream, Kafka) and the engine.
// It validates, optionally transforms and throttles per source, then
// forwards either synchronously or through a bounded queue.
type SignalPipeline struct {
	sink      Sink
	metrics   domrepo.Metrics
	log       *applogger.Logger
	limiter   *ratelimit.Limiter
	bufSize   int
	queue     chan *models.SignalEnvelope
	transform func(*models.SignalEnvelope) *models.SignalEnvelope
	now       func() time.Time

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

type PipelineOption func(*SignalPipeline)

// WithLimiter throttles per domain and source.
func WithLimiter(l *ratelimit.Limiter) PipelineOption {
	return func(p *SignalPipeline) { p.limiter = l }
}

func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform rewrites an envelope before validation of the result.
func WithTransform(fn func(*models.SignalEnvelope) *models.SignalEnvelope) PipelineOption {
	return func(p *SignalPipeline) { p.transform = fn }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *SignalPipeline) { p.now = now }
}

func NewSignalPipeline(sink Sink, metrics domrepo.Metrics, log *applogger.Logger, opts ...PipelineOption) *SignalPipeline {
	if log == nil {
		log = applogger.Nop()
	}
	p := &SignalPipeline{
		sink:    sink,
		metrics: metrics,
		log:     log.With(applogger.String("component", "signal_pipeline")),
		bufSize: 1000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan *models.SignalEnvelope, p.bufSize)
	return p
}

// Start launches the queue worker. It stops with ctx or Stop.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stopCh, p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case env := <-p.queue:
				if err := p.forward(ctx, env); err != nil {
					p.log.Warn("pipeline forward failed",
						applogger.String("domain", env.Domain),
						applogger.String("source", env.Source),
						applogger.Error(err))
				}
			}
		}
	}()
}

// Stop halts the worker and waits for it.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()
	<-done
}

// Enqueue validates and queues env for the worker. Throttled signals are
// dropped silently; a full queue drops and counts.
func (p *SignalPipeline) Enqueue(env *models.SignalEnvelope) error {
	env, err := p.admit(env)
	if err != nil || env == nil {
		return err
	}
	select {
	case p.queue <- env:
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("pipeline buffer full")
	}
}

// Process validates env and forwards it synchronously.
func (p *SignalPipeline) Process(ctx context.Context, env *models.SignalEnvelope) error {
	env, err := p.admit(env)
	if err != nil || env == nil {
		return err
	}
	return p.forward(ctx, env)
}

// Depth returns the number of queued envelopes.
func (p *SignalPipeline) Depth() int { return len(p.queue) }

func (p *SignalPipeline) admit(env *models.SignalEnvelope) (*models.SignalEnvelope, error) {
	if err := ValidateEnvelope(env); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return nil, err
	}
	cp := *env
	env = &cp
	if p.transform != nil {
		env = p.transform(env)
		if err := ValidateEnvelope(env); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return nil, err
		}
	}
	if env.Timestamp == 0 {
		env.Timestamp = p.now().Unix()
	}
	if p.limiter != nil && !p.limiter.Allow(env.Domain+"/"+env.Source) {
		p.metrics.RecordError("pipeline_throttle")
		return nil, nil
	}
	return env, nil
}

func (p *SignalPipeline) forward(ctx context.Context, env *models.SignalEnvelope) error {
	start := p.now()
	if err := p.sink.IngestSignals(ctx, env.Domain, []models.BeliefSignal{env.BeliefSignal}); err != nil {
		if errors.Is(err, models.ErrUnknownDomain) {
			p.metrics.RecordError("pipeline_unknown_domain")
		} else {
			p.metrics.RecordError("pipeline_process")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

// ValidateEnvelope checks the fields the engine relies on. A zero timestamp
// is allowed and stamped on admission.
func ValidateEnvelope(env *models.SignalEnvelope) error {
	switch {
	case env == nil:
		return fmt.Errorf("%w: envelope nil", models.ErrInvalidSignal)
	case env.Domain == "":
		return fmt.Errorf("%w: domain empty", models.ErrInvalidSignal)
	case env.Source == "":
		return fmt.Errorf("%w: source empty", models.ErrInvalidSignal)
	case !env.SignalType.Valid():
		return fmt.Errorf("%w: signal type %d", models.ErrInvalidSignal, int(env.SignalType))
	case math.IsNaN(env.Value) || math.IsInf(env.Value, 0):
		return fmt.Errorf("%w: value not finite", models.ErrInvalidSignal)
	case !(env.Weight > 0) || math.IsInf(env.Weight, 0):
		return fmt.Errorf("%w: weight must be positive", models.ErrInvalidSignal)
	case env.Timestamp < 0:
		return fmt.Errorf("%w: negative timestamp", models.ErrInvalidSignal)
	}
	return nil
}
