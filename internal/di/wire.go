//go:build wireinject
// +build wireinject

package di

import (
	"WeatherCast/pkg/config"
	"WeatherCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires the HTTP API and the observation consumer.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		InfraSet,
		UseCaseSet,

		ProvideTrainingDispatcher,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,
		ProvideObservationsHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeWorker wires the Redis training queue consumer.
func InitializeWorker(cfg *config.Config) (*server.Worker, func(), error) {
	wire.Build(
		InfraSet,
		UseCaseSet,
		ProvideTrainingQueue,
		ProvideWorker,
	)
	return nil, nil, nil
}

// InitializeTools wires the use cases behind the one-shot CLI commands.
func InitializeTools(cfg *config.Config) (*Tools, func(), error) {
	wire.Build(
		InfraSet,
		UseCaseSet,
		ProvideTools,
	)
	return nil, nil, nil
}
