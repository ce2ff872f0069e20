package trainer

import (
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/services/features"
	"WeatherCast/internal/services/ml"
	"WeatherCast/pkg/logger"
)

// DefaultTestFraction is the share of rows held out for evaluation.
const DefaultTestFraction = 0.2

type Config struct {
	Features     features.Config
	TestFraction float64
	SplitSeed    int64
	Forest       ml.ForestParams
}

func DefaultConfig() Config {
	return Config{
		Features:     features.DefaultConfig(),
		TestFraction: DefaultTestFraction,
		SplitSeed:    42,
		Forest:       ml.DefaultForestParams(),
	}
}

// Trainer fits a scaler and forest on windowed rows of one series.
type Trainer struct {
	cfg     Config
	builder *features.Builder
	log     *logger.Logger
	now     func() time.Time
}

func New(cfg Config, log *logger.Logger) (*Trainer, error) {
	if !(cfg.TestFraction > 0 && cfg.TestFraction < 1) {
		return nil, fmt.Errorf("test fraction must be in (0,1), got %v", cfg.TestFraction)
	}
	if cfg.Forest.Trees <= 0 {
		return nil, fmt.Errorf("forest needs at least one tree, got %d", cfg.Forest.Trees)
	}
	b, err := features.NewBuilder(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("feature builder: %w", err)
	}
	return &Trainer{cfg: cfg, builder: b, log: log, now: time.Now}, nil
}

func (t *Trainer) Config() Config { return t.cfg }

// Train builds rows from series, splits them with a fixed-seed permutation,
// fits the scaler on the training rows only and the forest on the scaled
// training rows, then scores the held-out rows. Problems with the input come
// back as *models.DataError.
func (t *Trainer) Train(series models.TimeSeries) (*models.TrainedModel, models.EvalMetrics, error) {
	start := t.now()
	target := t.builder.Target()

	series = series.Normalize()
	if series.Len() == 0 {
		return nil, models.EvalMetrics{}, models.NewDataError("no dated observations", models.ErrEmptySeries)
	}
	if !series.HasField(target) {
		return nil, models.EvalMetrics{}, models.NewDataError(fmt.Sprintf("field %q", target), models.ErrMissingTarget)
	}

	aux := t.builder.ResolveAux(series)
	rows := t.builder.Build(series, aux)
	if len(rows) < 2 {
		return nil, models.EvalMetrics{}, models.NewDataError(
			fmt.Sprintf("%d usable rows from %d observations with lag depth %d", len(rows), series.Len(), t.builder.LagDepth()),
			models.ErrInsufficientRows)
	}

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Features
		y[i] = r.Target
	}

	trainIdx, testIdx, err := ml.TrainTestSplit(len(rows), t.cfg.TestFraction, t.cfg.SplitSeed)
	if err != nil {
		return nil, models.EvalMetrics{}, models.NewDataError("split", err)
	}
	xTrain, yTrain := ml.Gather(X, y, trainIdx)
	xTest, yTest := ml.Gather(X, y, testIdx)

	scaler, err := ml.FitScaler(xTrain)
	if err != nil {
		return nil, models.EvalMetrics{}, fmt.Errorf("fit scaler: %w", err)
	}
	forest, err := ml.FitForest(ml.TransformAll(scaler, xTrain), yTrain, t.cfg.Forest)
	if err != nil {
		return nil, models.EvalMetrics{}, fmt.Errorf("fit forest: %w", err)
	}

	model := &models.TrainedModel{
		SchemaVersion: models.ModelSchemaVersion,
		Target:        target,
		AuxFields:     aux,
		LagDepth:      t.builder.LagDepth(),
		FeatureNames:  t.builder.Layout(aux),
		Scaler:        scaler,
		Forest:        forest,
		TrainedAt:     t.now().UTC(),
	}

	pred := make([]float64, len(xTest))
	for i, x := range xTest {
		pred[i] = model.Predict(x)
	}
	metrics := ml.Evaluate(yTest, pred)
	metrics.TrainRows = len(xTrain)
	model.Metrics = metrics

	if err := model.Validate(); err != nil {
		return nil, models.EvalMetrics{}, fmt.Errorf("trained model is inconsistent: %w", err)
	}

	t.log.Info("Model trained",
		logger.String("target", target),
		logger.Strings("aux_fields", aux),
		logger.Int("lag_depth", model.LagDepth),
		logger.Int("train_rows", metrics.TrainRows),
		logger.Int("test_rows", metrics.TestRows),
		logger.Float64("mse", metrics.MSE),
		logger.Float64("r2", metrics.R2),
		logger.Duration("elapsed_ms", t.now().Sub(start)),
	)
	return model, metrics, nil
}
