package forecaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/services/features"
	"WeatherCast/pkg/logger"
)

const DefaultDaysAhead = 5

type Config struct {
	// MaxDays caps the horizon of a single request.
	MaxDays int
	// AuxSentinel replaces auxiliary lag values that the history cannot
	// supply. Zero can sit outside a field's natural range and bias the
	// prediction; it is kept for compatibility with existing models.
	AuxSentinel float64
}

func DefaultConfig() Config {
	return Config{MaxDays: 60}
}

// StepFunc observes each step as it is produced. Returning an error stops
// the forecast; the steps already produced are kept.
type StepFunc func(models.ForecastStep) error

// ErrStopped is returned by Stream when ctx or the step callback ended the run early.
var ErrStopped = errors.New("forecast stopped")

// Forecaster runs recursive multi-step prediction. It holds no per-request
// state and is safe for concurrent use; models are only read.
type Forecaster struct {
	cfg Config
	log *logger.Logger
	now func() time.Time
}

func New(cfg Config, log *logger.Logger) *Forecaster {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = DefaultConfig().MaxDays
	}
	return &Forecaster{cfg: cfg, log: log, now: time.Now}
}

// Predict returns up to days predicted target values in step order.
func (f *Forecaster) Predict(model *models.TrainedModel, recent models.TimeSeries, days int) ([]float64, error) {
	fc, err := f.Forecast(model, recent, days)
	if err != nil {
		return nil, err
	}
	return fc.Values(), nil
}

// Forecast predicts days steps past the last observation of recent. When the
// target history is too short for the model's lag depth the forecast stops
// and carries the steps produced so far with Truncated set.
func (f *Forecaster) Forecast(model *models.TrainedModel, recent models.TimeSeries, days int) (*models.Forecast, error) {
	fc, err := f.Stream(context.Background(), model, recent, days, nil)
	if errors.Is(err, ErrStopped) {
		return fc, nil
	}
	return fc, err
}

// Stream is Forecast with a per-step callback and cancellation between steps.
func (f *Forecaster) Stream(ctx context.Context, model *models.TrainedModel, recent models.TimeSeries, days int, onStep StepFunc) (*models.Forecast, error) {
	if model == nil {
		return nil, fmt.Errorf("forecast: nil model")
	}
	if days < 1 || days > f.cfg.MaxDays {
		return nil, fmt.Errorf("forecast: %w: days must be in [1,%d], got %d", models.ErrHorizon, f.cfg.MaxDays, days)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	recent = recent.Normalize()
	out := &models.Forecast{
		Location:  recent.Location,
		Target:    model.Target,
		Requested: days,
		Steps:     make([]models.ForecastStep, 0, days),
		IssuedAt:  f.now().UTC(),
	}

	buf := newBuffer(recent, model.Target, model.AuxFields, days)
	targetLags := make([]float64, model.LagDepth)
	auxLags := make([][]float64, len(model.AuxFields))
	for j := range auxLags {
		auxLags[j] = make([]float64, model.LagDepth)
	}

	var stopErr error
	for step := 1; step <= days; step++ {
		if err := ctx.Err(); err != nil {
			stopErr = fmt.Errorf("%w: %v", ErrStopped, err)
			break
		}
		last, ok := buf.lastTime()
		if !ok || !buf.targetLags(targetLags) {
			break
		}
		for j := range auxLags {
			buf.auxLags(j, auxLags[j], f.cfg.AuxSentinel)
		}
		next := features.NextDay(last)
		value := model.Predict(features.Assemble(next, targetLags, auxLags))
		buf.appendPrediction(next, value)

		st := models.ForecastStep{Day: step, Date: next, Value: value}
		out.Steps = append(out.Steps, st)
		if onStep != nil {
			if err := onStep(st); err != nil {
				stopErr = fmt.Errorf("%w: %v", ErrStopped, err)
				break
			}
		}
	}
	out.Truncated = len(out.Steps) < days

	if out.Truncated && stopErr == nil {
		f.log.Warn("forecast truncated: not enough target history",
			logger.String("location", recent.Location),
			logger.String("target", model.Target),
			logger.Int("history", recent.Len()),
			logger.Int("lag_depth", model.LagDepth),
			logger.Int("requested", days),
			logger.Int("produced", len(out.Steps)),
		)
	}
	return out, stopErr
}
