package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	"WeatherCast/internal/services/trainer"
	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/tracing"
)

const DefaultModelName = "weather_model"

// TrainParams selects the series and overrides the configured trainer
// settings for one run. Zero values keep the configured defaults.
type TrainParams struct {
	Source       string  `json:"source"`
	Location     string  `json:"location"`
	Target       string  `json:"target,omitempty"`
	LagDepth     int     `json:"lag_depth,omitempty"`
	TestFraction float64 `json:"test_fraction,omitempty"`
	ModelName    string  `json:"model"`
}

// ModelSavedFunc is called after a model has been persisted under name.
type ModelSavedFunc func(ctx context.Context, name string)

// TrainUseCase loads a series, trains a model and persists it. Nothing is
// written when training fails.
type TrainUseCase struct {
	sources *Sources
	store   domrepo.ModelStore
	base    trainer.Config
	metrics domrepo.Metrics
	log     *applogger.Logger

	mu      sync.RWMutex
	onSaved []ModelSavedFunc
	now     func() time.Time

	defaultModel string
}

func NewTrainUseCase(sources *Sources, store domrepo.ModelStore, base trainer.Config, metrics domrepo.Metrics, log *applogger.Logger) *TrainUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &TrainUseCase{sources: sources, store: store, base: base, metrics: metrics, log: log, now: time.Now, defaultModel: DefaultModelName}
}

// WithDefaultModel sets the name used when a run leaves ModelName empty.
func (u *TrainUseCase) WithDefaultModel(name string) *TrainUseCase {
	if name != "" {
		u.defaultModel = name
	}
	return u
}

// ModelName resolves an empty name to the configured default.
func (u *TrainUseCase) ModelName(name string) string {
	if name == "" {
		return u.defaultModel
	}
	return name
}

// OnModelSaved registers fn to run after every successful save.
func (u *TrainUseCase) OnModelSaved(fn ModelSavedFunc) {
	u.mu.Lock()
	u.onSaved = append(u.onSaved, fn)
	u.mu.Unlock()
}

// Train runs the full pipeline for p.
func (u *TrainUseCase) Train(ctx context.Context, p TrainParams) (*models.TrainResult, error) {
	ctx, span := tracing.StartSpan(ctx, "usecase.Train",
		tracing.AttrSource.String(p.Source),
		tracing.AttrLocation.String(p.Location),
		tracing.AttrModel.String(p.ModelName),
	)
	defer span.End()

	src, _, err := u.sources.Resolve(p.Source)
	if err != nil {
		tracing.RecordError(span, err)
		u.metrics.RecordTrainingFailure("source")
		return nil, err
	}
	series, err := src.LoadSeries(ctx, p.Location)
	if err != nil {
		tracing.RecordError(span, err)
		u.metrics.RecordTrainingFailure(failureReason(err))
		return nil, fmt.Errorf("load series: %w", err)
	}
	res, err := u.TrainSeries(ctx, p, series)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.AttrRows.Int(res.Rows))
	return res, nil
}

// TrainSeries trains on an already loaded series and saves the model.
func (u *TrainUseCase) TrainSeries(ctx context.Context, p TrainParams, series models.TimeSeries) (*models.TrainResult, error) {
	start := u.now()
	name := u.ModelName(p.ModelName)

	tr, err := trainer.New(u.configFor(p), u.log)
	if err != nil {
		u.metrics.RecordTrainingFailure("config")
		return nil, err
	}
	model, metrics, err := tr.Train(series)
	if err != nil {
		u.metrics.RecordTrainingFailure(failureReason(err))
		u.log.Warn("training failed",
			applogger.String("model", name),
			applogger.String("location", series.Location),
			applogger.Error(err),
		)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		u.metrics.RecordTrainingFailure("cancelled")
		return nil, err
	}
	if err := u.store.Save(ctx, name, model); err != nil {
		u.metrics.RecordTrainingFailure("store")
		u.metrics.RecordError("model_save")
		return nil, fmt.Errorf("save model %q: %w", name, err)
	}

	rows := metrics.TrainRows + metrics.TestRows
	u.metrics.RecordTraining(model.Target, rows, time.Since(start).Seconds(), metrics.R2)
	u.log.Info("model saved",
		applogger.String("model", name),
		applogger.String("target", model.Target),
		applogger.Int("rows", rows),
		applogger.Float64("r2", metrics.R2),
	)

	u.mu.RLock()
	hooks := u.onSaved
	u.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, name)
	}

	return &models.TrainResult{
		Model:     name,
		Target:    model.Target,
		LagDepth:  model.LagDepth,
		AuxFields: model.AuxFields,
		Rows:      rows,
		Metrics:   metrics,
		TrainedAt: model.TrainedAt,
	}, nil
}

func (u *TrainUseCase) configFor(p TrainParams) trainer.Config {
	cfg := u.base
	if p.Target != "" {
		cfg.Features.Target = p.Target
	}
	if p.LagDepth > 0 {
		cfg.Features.LagDepth = p.LagDepth
	}
	if p.TestFraction > 0 {
		cfg.TestFraction = p.TestFraction
	}
	return cfg
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingTarget):
		return "missing_target"
	case errors.Is(err, models.ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, models.ErrInsufficientRows):
		return "insufficient_rows"
	case models.IsDataError(err):
		return "data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
