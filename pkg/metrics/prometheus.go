package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingRuns     *prometheus.CounterVec
	trainingFailures *prometheus.CounterVec
	trainingRows     *prometheus.GaugeVec
	trainingR2       *prometheus.GaugeVec
	forecasts        *prometheus.CounterVec
	forecastSteps    *prometheus.CounterVec
	truncated        *prometheus.CounterVec
	modelLoadErrors  *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a Recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_training_runs_total",
				Help: "Completed training runs",
			},
			[]string{"target"},
		),
		trainingFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_training_failures_total",
				Help: "Training runs that produced no model",
			},
			[]string{"reason"},
		),
		trainingRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weathercast_training_rows",
				Help: "Usable feature rows in the last training run",
			},
			[]string{"target"},
		),
		trainingR2: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weathercast_training_r2",
				Help: "Held-out R2 of the last training run",
			},
			[]string{"target"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_forecasts_total",
				Help: "Forecasts served",
			},
			[]string{"model"},
		),
		forecastSteps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_forecast_steps_total",
				Help: "Forecast steps produced",
			},
			[]string{"model"},
		),
		truncated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_forecasts_truncated_total",
				Help: "Forecasts that stopped before the requested horizon",
			},
			[]string{"model"},
		),
		modelLoadErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_model_load_errors_total",
				Help: "Persisted models that could not be loaded",
			},
			[]string{"model"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathercast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weathercast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// RecordTraining records a successful training run.
func (r *Recorder) RecordTraining(target string, rows int, seconds, r2 float64) {
	r.trainingRuns.WithLabelValues(target).Inc()
	r.trainingRows.WithLabelValues(target).Set(float64(rows))
	r.trainingR2.WithLabelValues(target).Set(r2)
	r.latency.WithLabelValues("train").Observe(seconds)
}

// RecordTrainingFailure records a run that ended without a model.
func (r *Recorder) RecordTrainingFailure(reason string) {
	r.trainingFailures.WithLabelValues(reason).Inc()
}

// RecordForecast records one served forecast.
func (r *Recorder) RecordForecast(model string, requested, produced int, seconds float64) {
	r.forecasts.WithLabelValues(model).Inc()
	r.forecastSteps.WithLabelValues(model).Add(float64(produced))
	if produced < requested {
		r.truncated.WithLabelValues(model).Inc()
	}
	r.latency.WithLabelValues("forecast").Observe(seconds)
}

// RecordModelLoadError records a model that failed to load.
func (r *Recorder) RecordModelLoadError(model string) {
	r.modelLoadErrors.WithLabelValues(model).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
