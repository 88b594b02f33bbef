//go:build wireinject
// +build wireinject

package di

import (
	"FlashScan/pkg/config"
	"FlashScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideCache,

		// Repositories
		ProvideBarSource,
		ProvideResultStore,
		ProvideFlashPublisher,

		// Use cases
		ProvideAnalysisUseCase,
		ProvideBarsUseCase,
		ProvideKafkaJobsHandler,

		// Transport
		ProvideHTTPHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
