//go:build wireinject
// +build wireinject

package di

import (
	"Preda/pkg/config"
	"Preda/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories and sources
		ProvidePublisher,
		ProvideIndexArchive,
		ProvideSignalSources,

		// Use cases
		ProvideEngine,
		ProvideDispatcher,
		ProvideValidator,
		ProvideScheduler,
		ProvideSignalPipeline,
		ProvideSignalCollector,
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,

		// HTTP
		ProvideBeliefHandler,
		ProvideHealthHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
