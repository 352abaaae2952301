package usecase

import (
	"context"
	"sync"

	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	mid "Preda/internal/middleware"
	applogger "Preda/pkg/logger"
)

// SignalCollector reads the push stream and hands envelopes to the pipeline,
// reconnecting whenever the stream fails.
type SignalCollector struct {
	stream  drepo.SignalStream
	pipe    *mid.SignalPipeline
	metrics drepo.Metrics
	log     *applogger.Logger
	wg      sync.WaitGroup
}

func NewSignalCollector(stream drepo.SignalStream, pipe *mid.SignalPipeline, metrics drepo.Metrics, log *applogger.Logger) *SignalCollector {
	if log == nil {
		log = applogger.Nop()
	}
	return &SignalCollector{stream: stream, pipe: pipe, metrics: metrics, log: log.With(applogger.String("component", "signal_collector"))}
}

func (c *SignalCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects, subscribes and begins consuming in the background.
func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	c.wg.Add(1)
	go c.loop(ctx)
	return nil
}

func (c *SignalCollector) loop(ctx context.Context) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		sigCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, sigCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for ctx.Err() == nil {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.log.Info("stream reconnected")
				break
			}
			c.log.Warn("stream reconnect failed", applogger.Error(err))
		}
	}
}

// consume returns when the stream reports an error or closes.
func (c *SignalCollector) consume(ctx context.Context, sigCh <-chan *models.SignalEnvelope, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.log.Warn("stream error", applogger.Error(err))
			}
			return
		case env, ok := <-sigCh:
			if !ok {
				return
			}
			if env == nil {
				continue
			}
			if err := c.pipe.Enqueue(env); err != nil {
				c.log.Debug("signal rejected", applogger.String("domain", env.Domain), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline, closes the stream and waits for the loop.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.pipe.Stop()
	return err
}
