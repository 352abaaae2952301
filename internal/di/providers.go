package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"Preda/internal/domain/repository"
	"Preda/internal/handler/api"
	mid "Preda/internal/middleware"
	internalrepo "Preda/internal/repository"
	icache "Preda/internal/service/cache"
	"Preda/internal/service/ratelimit"
	"Preda/internal/service/stream"
	"Preda/internal/services/oracle"
	"Preda/internal/usecase"
	pkgch "Preda/pkg/clickhouse"
	"Preda/pkg/config"
	xhttp "Preda/pkg/http"
	pkgkafka "Preda/pkg/kafka"
	applogger "Preda/pkg/logger"
	"Preda/pkg/metrics"
	"Preda/pkg/server"
)

// ProvideLogger builds the root logger from the log section. With a Kafka
// producer, repeated errors are also aggregated onto the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache returns a memory-over-Redis layered cache when Redis is
// enabled, an in-memory TTL cache otherwise.
func ProvideCache(cfg *config.Config, log *applogger.Logger) icache.BytesCache {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache()
	}
	rc := icache.NewRedisCache(icache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unavailable at startup, lookups will fall back to the engine",
			applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
	}
	return icache.NewLayeredCache(icache.NewTTLCache(), rc, time.Second)
}

// ProvideSignalSources builds the enabled oracles.
func ProvideSignalSources(cfg *config.Config) []repository.SignalSource {
	clientOpts := []xhttp.ClientOption{
		xhttp.WithTimeout(cfg.Oracles.Timeout),
		xhttp.WithRateLimit(cfg.Oracles.RatePerSecond, 4*len(cfg.Engine.Domains)),
	}
	if cfg.Oracles.APIKey != "" {
		clientOpts = append(clientOpts, xhttp.WithHeader("Authorization", "Bearer "+cfg.Oracles.APIKey))
	}
	client := xhttp.NewClient(clientOpts...)

	type entry struct {
		ep  config.OracleEndpoint
		new func(string, ...oracle.Option) *oracle.HTTPOracle
	}
	var sources []repository.SignalSource
	for _, e := range []entry{
		{cfg.Oracles.Sentiment, oracle.NewSentiment},
		{cfg.Oracles.Narrative, oracle.NewNarrative},
		{cfg.Oracles.Forecast, oracle.NewForecast},
		{cfg.Oracles.Consensus, oracle.NewConsensus},
	} {
		if e.ep.Enabled {
			sources = append(sources, e.new(e.ep.Endpoint, oracle.WithClient(client)))
		}
	}
	return sources
}

// ProvideEngine creates the belief engine for the configured domains.
func ProvideEngine(
	cfg *config.Config,
	sources []repository.SignalSource,
	cache icache.BytesCache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.BeliefEngine {
	return usecase.NewBeliefEngine(usecase.EngineConfig{
		Domains:        cfg.Engine.Domains,
		MaxBufferSize:  cfg.Engine.MaxBufferSize,
		SignalMaxAge:   cfg.Engine.SignalMaxAge,
		RecentWindow:   cfg.Engine.RecentWindow,
		QueryTimeout:   cfg.Engine.QueryTimeout,
		CacheTTL:       cfg.Redis.TTL,
		BSI:            cfg.BSI,
		Threshold:      cfg.Monitor.Threshold,
		MinPersistence: cfg.Monitor.MinPersistence,
	}, sources, cache, m, log)
}

// ProvideKafkaProducer creates a Kafka producer when the kafka backend is selected.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher wraps the producer; nil without one.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Updates, cfg.Kafka.Topics.Inflections)
}

// ProvideClickHouseClient connects when the clickhouse backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideIndexArchive creates the archive tables; nil without a client.
func ProvideIndexArchive(ch *pkgch.Client, cfg *config.Config, log *applogger.Logger) (repository.IndexArchive, error) {
	if ch == nil {
		return nil, nil
	}
	archive := internalrepo.NewCHIndexArchive(ch, cfg.ClickHouse.Database, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvideDispatcher routes inflection events and updates to the backend and
// subscribes it to the engine's updates.
func ProvideDispatcher(
	cfg *config.Config,
	engine *usecase.BeliefEngine,
	pub repository.Publisher,
	archive repository.IndexArchive,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.InflectionDispatcher, error) {
	d, err := usecase.NewInflectionDispatcher(cfg.Backend.Type, pub, archive, m, log, cfg.Backend.BatchSize, cfg.Backend.BatchTimeout)
	if err != nil {
		return nil, err
	}
	engine.AddUpdateSink(d)
	return d, nil
}

// ProvideValidator tracks every detected inflection and reports to the dispatcher.
func ProvideValidator(
	cfg *config.Config,
	engine *usecase.BeliefEngine,
	dispatcher *usecase.InflectionDispatcher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.PersistenceValidator {
	v := usecase.NewPersistenceValidator(engine, dispatcher, m, log, cfg.Engine.ValidationTimeout)
	engine.Subscribe(v)
	return v
}

func ProvideScheduler(cfg *config.Config, engine *usecase.BeliefEngine, v *usecase.PersistenceValidator, log *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(engine, v, usecase.SchedulerConfig{
		RefreshInterval:    cfg.Engine.RefreshInterval,
		DecayInterval:      cfg.Engine.DecayInterval,
		ValidationInterval: cfg.Engine.ValidationInterval,
	}, log)
}

// ProvideSignalPipeline builds the push-ingest pipeline in front of the engine.
func ProvideSignalPipeline(cfg *config.Config, engine *usecase.BeliefEngine, m repository.Metrics, log *applogger.Logger) *mid.SignalPipeline {
	return mid.NewSignalPipeline(engine, m, log,
		mid.WithLimiter(ratelimit.New(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst)),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
	)
}

// ProvideSignalCollector creates the WebSocket collector when the stream is enabled.
func ProvideSignalCollector(cfg *config.Config, pipe *mid.SignalPipeline, m repository.Metrics, log *applogger.Logger) *usecase.SignalCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	s := stream.New(log, cfg.Stream.APIKey, cfg.Stream.URL, cfg.Engine.Domains, cfg.Stream.ReconnectDelay, cfg.Stream.PingInterval)
	return usecase.NewSignalCollector(s, pipe, m, log)
}

// ProvideKafkaConsumer creates the signals consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.NewTracingHook(),
		pkgkafka.NewLoggingHook(log, time.Second),
	))
	return consumer, nil
}

func ProvideKafkaSignalsHandler(cfg *config.Config, pipe *mid.SignalPipeline, m repository.Metrics) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topics.Signals, pipe, m)
}

func ProvideBeliefHandler(cfg *config.Config, engine *usecase.BeliefEngine, archive repository.IndexArchive, log *applogger.Logger) *api.BeliefEchoHandler {
	return api.NewBeliefEchoHandler(log, engine, archive, ratelimit.New(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst))
}

// ProvideHealthHandler registers readiness probes for the enabled dependencies.
func ProvideHealthHandler(ch *pkgch.Client, collector *usecase.SignalCollector) *server.HealthHandler {
	h := server.NewHealthHandler(2 * time.Second)
	if ch != nil {
		h.Add("clickhouse", ch.Health)
	}
	if collector != nil {
		h.Add("stream", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("stream disconnected")
			}
			return nil
		})
	}
	return h
}

// ProvideHTTPServer creates the Echo server with every route handler.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, belief *api.BeliefEchoHandler, health *server.HealthHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, []xhttp.Handler{belief, health},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.BeliefEngine,
	scheduler *usecase.Scheduler,
	dispatcher *usecase.InflectionDispatcher,
	pipe *mid.SignalPipeline,
	httpServer *xhttp.Server,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	ch *pkgch.Client,
	cache icache.BytesCache,
) *server.App {
	c := server.Components{
		Engine:     engine,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Pipeline:   pipe,
		HTTPServer: httpServer,
		Collector:  collector,
		ClickHouse: ch,
	}
	if consumer != nil {
		c.Consumer = consumer
		c.SignalsHandler = kh
	}
	if closer, ok := cache.(io.Closer); ok {
		c.Cache = closer
	}
	return server.New(cfg, log, c)
}
