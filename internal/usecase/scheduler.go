package usecase

import (
	"context"
	"time"

	applogger "Preda/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// SchedulerConfig holds the periodic intervals. A zero interval disables
// that loop.
type SchedulerConfig struct {
	RefreshInterval    time.Duration
	DecayInterval      time.Duration
	ValidationInterval time.Duration
	Parallelism        int
}

// Scheduler drives the engine: refresh and compute on every refresh tick,
// decay on the decay tick and persistence validation on its own tick.
type Scheduler struct {
	engine    *BeliefEngine
	validator *PersistenceValidator
	cfg       SchedulerConfig
	log       *applogger.Logger
}

func NewScheduler(engine *BeliefEngine, validator *PersistenceValidator, cfg SchedulerConfig, log *applogger.Logger) *Scheduler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Scheduler{engine: engine, validator: validator, cfg: cfg, log: log.With(applogger.String("component", "scheduler"))}
}

// Run blocks until ctx is done. The first refresh happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	refresh := tick(s.cfg.RefreshInterval)
	decay := tick(s.cfg.DecayInterval)
	validate := tick(s.cfg.ValidationInterval)
	defer refresh.stop()
	defer decay.stop()
	defer validate.stop()

	s.RefreshAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.c:
			s.RefreshAll(ctx)
		case <-decay.c:
			s.DecayAll()
		case <-validate.c:
			if s.validator != nil {
				s.validator.Tick(ctx)
			}
		}
	}
}

// RefreshAll refreshes and computes every domain, a few at a time.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, d := range s.engine.Domains() {
		d := d
		g.Go(func() error {
			if _, err := s.engine.Refresh(gctx, d); err != nil {
				s.log.Warn("refresh failed", applogger.String("domain", d), applogger.Error(err))
			}
			if _, _, err := s.engine.Compute(gctx, d); err != nil {
				s.log.Warn("compute failed", applogger.String("domain", d), applogger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Debug("refresh cycle done", applogger.Duration("duration_ms", time.Since(start)))
}

func (s *Scheduler) DecayAll() {
	for _, d := range s.engine.Domains() {
		_ = s.engine.Decay(d)
	}
}

type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func tick(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
