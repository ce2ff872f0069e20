package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	"WeatherCast/internal/services/forecaster"
	"WeatherCast/pkg/cache"
	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/tracing"

	lru "github.com/hashicorp/golang-lru/v2"
)

const forecastKeyPrefix = "forecast"

type ForecastParams struct {
	ModelName string `json:"model"`
	Source    string `json:"source"`
	Location  string `json:"location"`
	Days      int    `json:"days"`
}

type ForecastOptions struct {
	// ModelCacheSize bounds the number of decoded models kept in memory.
	ModelCacheSize int
	// CacheTTL is how long a served forecast is reused; zero disables caching.
	CacheTTL time.Duration
	// DefaultDays is used when a request leaves Days at zero.
	DefaultDays int
	// DefaultModel is used when a request leaves ModelName empty.
	DefaultModel string
}

// ForecastUseCase serves forecasts from persisted models. Decoded models are
// shared read-only between requests through an LRU, each entry tagged with
// the model stamp it was loaded under.
type ForecastUseCase struct {
	sources   *Sources
	store     domrepo.ModelStore
	fc        *forecaster.Forecaster
	models    *lru.Cache[string, loadedModel]
	stamps    *ModelStamps
	responses cache.Service
	opts      ForecastOptions
	pub       domrepo.ForecastPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

func NewForecastUseCase(
	sources *Sources,
	store domrepo.ModelStore,
	fc *forecaster.Forecaster,
	opts ForecastOptions,
	responses cache.Service,
	pub domrepo.ForecastPublisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) (*ForecastUseCase, error) {
	if opts.ModelCacheSize <= 0 {
		opts.ModelCacheSize = 16
	}
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = forecaster.DefaultDaysAhead
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = DefaultModelName
	}
	mc, err := lru.New[string, loadedModel](opts.ModelCacheSize)
	if err != nil {
		return nil, fmt.Errorf("model cache: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ForecastUseCase{
		sources:   sources,
		store:     store,
		fc:        fc,
		models:    mc,
		stamps:    NewModelStamps(responses, log),
		responses: responses,
		opts:      opts,
		pub:       pub,
		metrics:   metrics,
		log:       log,
	}, nil
}

type loadedModel struct {
	model *models.TrainedModel
	stamp int64
}

// unknownStamp means the shared stamp could not be read; cached models are
// served as they are and responses are not cached.
const unknownStamp = -1

// Model returns the named model. It is reloaded from the store when it is
// not cached or was retrained since it was cached.
func (u *ForecastUseCase) Model(ctx context.Context, name string) (*models.TrainedModel, error) {
	if name == "" {
		name = u.opts.DefaultModel
	}
	return u.modelAt(ctx, name, u.stamp(ctx, name))
}

func (u *ForecastUseCase) modelAt(ctx context.Context, name string, stamp int64) (*models.TrainedModel, error) {
	if e, ok := u.models.Get(name); ok && (stamp == unknownStamp || e.stamp == stamp) {
		return e.model, nil
	}
	m, err := u.store.Load(ctx, name)
	if err != nil {
		if models.IsModelLoadError(err) {
			u.metrics.RecordModelLoadError(name)
		}
		return nil, err
	}
	u.models.Add(name, loadedModel{model: m, stamp: stamp})
	return m, nil
}

func (u *ForecastUseCase) stamp(ctx context.Context, name string) int64 {
	st, err := u.stamps.Current(ctx, name)
	if err != nil {
		u.log.Warn("model stamp lookup failed", applogger.String("model", name), applogger.Error(err))
		return unknownStamp
	}
	return st
}

// Invalidate drops the cached model, moves its shared stamp forward and
// drops any cached forecasts made with it.
func (u *ForecastUseCase) Invalidate(ctx context.Context, name string) {
	u.models.Remove(name)
	u.stamps.Retrained(ctx, name)
}

// Predict loads the recent series for p.Location and forecasts p.Days ahead.
func (u *ForecastUseCase) Predict(ctx context.Context, p ForecastParams) (*models.Forecast, error) {
	p = u.normalize(p)
	ctx, span := tracing.StartSpan(ctx, "usecase.Predict",
		tracing.AttrModel.String(p.ModelName),
		tracing.AttrSource.String(p.Source),
		tracing.AttrLocation.String(p.Location),
		tracing.AttrDays.Int(p.Days),
	)
	defer span.End()

	stamp := u.stamp(ctx, p.ModelName)
	key := u.cacheKey(p, stamp)
	caching := u.responses != nil && u.opts.CacheTTL > 0 && stamp != unknownStamp
	if caching {
		var cached models.Forecast
		err := u.responses.Get(ctx, key, &cached)
		if err == nil {
			span.SetAttributes(tracing.AttrCacheHit.Bool(true))
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			u.log.Warn("forecast cache get failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	model, series, err := u.prepare(ctx, p, stamp)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	fc, err := u.run(ctx, p, model, series, nil)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.AttrSteps.Int(len(fc.Steps)))

	if caching {
		if err := u.responses.Set(ctx, key, fc, u.opts.CacheTTL); err != nil {
			u.log.Warn("forecast cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return fc, nil
}

// Stream is Predict without response caching; onStep sees every step as it
// is produced and may stop the run by returning an error.
func (u *ForecastUseCase) Stream(ctx context.Context, p ForecastParams, onStep forecaster.StepFunc) (*models.Forecast, error) {
	p = u.normalize(p)
	ctx, span := tracing.StartSpan(ctx, "usecase.Stream",
		tracing.AttrModel.String(p.ModelName),
		tracing.AttrLocation.String(p.Location),
		tracing.AttrDays.Int(p.Days),
	)
	defer span.End()

	model, series, err := u.prepare(ctx, p, u.stamp(ctx, p.ModelName))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	fc, err := u.run(ctx, p, model, series, onStep)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return fc, err
}

// PredictSeries forecasts from a caller supplied recent series.
func (u *ForecastUseCase) PredictSeries(ctx context.Context, modelName string, recent models.TimeSeries, days int) (*models.Forecast, error) {
	p := u.normalize(ForecastParams{ModelName: modelName, Location: recent.Location, Days: days})
	model, err := u.Model(ctx, p.ModelName)
	if err != nil {
		return nil, err
	}
	return u.run(ctx, p, model, recent, nil)
}

func (u *ForecastUseCase) normalize(p ForecastParams) ForecastParams {
	if p.ModelName == "" {
		p.ModelName = u.opts.DefaultModel
	}
	if p.Days == 0 {
		p.Days = u.opts.DefaultDays
	}
	return p
}

func (u *ForecastUseCase) prepare(ctx context.Context, p ForecastParams, stamp int64) (*models.TrainedModel, models.TimeSeries, error) {
	model, err := u.modelAt(ctx, p.ModelName, stamp)
	if err != nil {
		return nil, models.TimeSeries{}, err
	}
	src, _, err := u.sources.Resolve(p.Source)
	if err != nil {
		return nil, models.TimeSeries{}, err
	}
	series, err := src.LoadSeries(ctx, p.Location)
	if err != nil {
		return nil, models.TimeSeries{}, fmt.Errorf("load recent series: %w", err)
	}
	return model, series, nil
}

func (u *ForecastUseCase) run(ctx context.Context, p ForecastParams, model *models.TrainedModel, series models.TimeSeries, onStep forecaster.StepFunc) (*models.Forecast, error) {
	start := time.Now()
	fc, err := u.fc.Stream(ctx, model, series, p.Days, onStep)
	if fc == nil {
		u.metrics.RecordError("forecast")
		return nil, err
	}
	fc.Model = p.ModelName
	u.metrics.RecordForecast(p.ModelName, p.Days, len(fc.Steps), time.Since(start).Seconds())
	if err != nil {
		return fc, err
	}

	if u.pub != nil && len(fc.Steps) > 0 {
		if perr := u.pub.PublishForecast(ctx, fc); perr != nil {
			u.metrics.RecordError("forecast_publish")
			u.log.Warn("forecast publish failed", applogger.String("model", p.ModelName), applogger.Error(perr))
		}
	}
	return fc, nil
}

// cacheKey ends with the model stamp so a response computed from a model
// retrained meanwhile is never read back.
func (u *ForecastUseCase) cacheKey(p ForecastParams, stamp int64) string {
	return cache.GenerateKeyWithParams(forecastKeyPrefix, p.ModelName, p.Source, cache.HashKey(p.Location), p.Days, stamp)
}

// InvalidateLocation drops cached forecasts for location across all models.
func (u *ForecastUseCase) InvalidateLocation(ctx context.Context, location string) {
	if u.responses == nil {
		return
	}
	pattern := forecastKeyPrefix + ":*:*:" + cache.HashKey(location) + ":*"
	if err := u.responses.DeleteByPattern(ctx, pattern); err != nil {
		u.log.Warn("forecast cache invalidation failed", applogger.String("location", location), applogger.Error(err))
	}
}
