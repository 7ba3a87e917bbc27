//go:build wireinject
// +build wireinject

package di

import (
	"Stooorage/pkg/config"
	"Stooorage/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideSalePublisher,
		ProvideLogPublisher,
		ProvideSaleSink,
		ProvideSeriesStore,
		ProvideForecastCache,

		// Use cases
		ProvideForecaster,
		ProvideForecastUseCase,
		ProvideProductUseCase,
		ProvideTransactionUseCase,
		ProvideReportUseCase,
		ProvideKafkaSalesHandler,

		// Transport
		ProvideServiceHandler,
		ProvideForecastHandler,
		ProvideProductsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
