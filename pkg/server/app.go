package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mid "Preda/internal/middleware"
	"Preda/internal/usecase"
	pkgch "Preda/pkg/clickhouse"
	"Preda/pkg/config"
	xhttp "Preda/pkg/http"
	pkgkafka "Preda/pkg/kafka"
	applogger "Preda/pkg/logger"
)

// Components are the wired parts the App runs. Optional parts are nil when
// disabled by configuration.
type Components struct {
	Engine     *usecase.BeliefEngine
	Scheduler  *usecase.Scheduler
	Dispatcher *usecase.InflectionDispatcher
	Pipeline   *mid.SignalPipeline
	HTTPServer *xhttp.Server

	Collector      *usecase.SignalCollector
	Consumer       *pkgkafka.Consumer
	SignalsHandler pkgkafka.MessageHandler
	ClickHouse     *pkgch.Client
	Cache          io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts every component and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The dispatcher outlives the producers of its work so it can drain.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go a.c.Dispatcher.Run(dispatchCtx)

	a.c.Pipeline.Start(ctx)

	if a.c.Collector != nil {
		if err := a.c.Collector.Start(ctx); err != nil {
			a.log.Error("signal stream start failed", applogger.Error(err))
		} else {
			a.log.Info("signal stream started", applogger.Strings("domains", a.cfg.Engine.Domains))
		}
	}

	if a.c.Consumer != nil && a.c.SignalsHandler != nil {
		a.c.Consumer.RegisterHandler(a.c.SignalsHandler)
		if err := a.c.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.c.SignalsHandler.Topic()))
		}
	}

	if err := a.c.HTTPServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.c.Scheduler.Run(ctx)
	}()

	a.log.Info("engine running",
		applogger.Strings("domains", a.c.Engine.Domains()),
		applogger.Int("sources", len(a.c.Engine.Sources())),
		applogger.String("backend", a.c.Dispatcher.Backend()))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	wg.Wait()
	return a.shutdown(stopDispatch)
}

// shutdown stops ingress first, then drains the dispatcher, then closes
// the infrastructure clients.
func (a *App) shutdown(stopDispatch context.CancelFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.c.HTTPServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.c.Collector != nil {
		if err := a.c.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("signal stream stop error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.c.Pipeline.Stop()

	stopDispatch()
	a.c.Dispatcher.Wait()
	// The log collector may publish through the producer the dispatcher owns.
	a.log.RemoveCollector()
	a.c.Dispatcher.Close()

	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
