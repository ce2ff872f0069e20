package di

import "github.com/google/wire"

// InfraSet provides clients, stores and the shared cache.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideSQLiteSource,
	ProvideSources,
	ProvideModelStore,
	ProvideRedisClient,
	ProvideCache,
	ProvideKafkaProducer,
	ProvideForecastPublisher,
)

// UseCaseSet provides the training and forecasting use cases.
var UseCaseSet = wire.NewSet(
	ProvideTrainerConfig,
	ProvideForecaster,
	ProvideTrainUseCase,
	ProvideForecastUseCase,
	ProvideTrainingJob,
)
