package repository

import (
	"context"

	"WeatherCast/internal/domain/models"
)

// SeriesSource loads the observation series for a location. Implementations
// return observations in any order; callers normalize.
type SeriesSource interface {
	LoadSeries(ctx context.Context, location string) (models.TimeSeries, error)
}

// ModelStore persists and reloads trained models by name. Save is atomic:
// after a failed Save the previous blob (if any) is untouched. Load fails
// with *models.ModelLoadError and never returns a partial model.
type ModelStore interface {
	Save(ctx context.Context, name string, m *models.TrainedModel) error
	Load(ctx context.Context, name string) (*models.TrainedModel, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// ForecastPublisher fans completed forecasts out to downstream consumers.
type ForecastPublisher interface {
	PublishForecast(ctx context.Context, f *models.Forecast) error
	Close() error
}

type Metrics interface {
	RecordTraining(target string, rows int, seconds float64, r2 float64)
	RecordTrainingFailure(reason string)
	RecordForecast(model string, requested, produced int, seconds float64)
	RecordModelLoadError(model string)
	RecordError(kind string)
}
