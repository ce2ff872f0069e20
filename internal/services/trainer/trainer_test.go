package trainer

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/services/ml"
)

var day0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func series(n int, fn func(d int) map[string]float64) models.TimeSeries {
	s := models.TimeSeries{Location: "station"}
	for d := 0; d < n; d++ {
		s.Observations = append(s.Observations, models.Observation{Time: day0.AddDate(0, 0, d), Values: fn(d)})
	}
	return s
}

func newTrainer(t *testing.T, mutate func(*Config)) *Trainer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Forest.Trees = 20
	if mutate != nil {
		mutate(&cfg)
	}
	tr, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	return tr
}

func TestTrainSine(t *testing.T) {
	tr := newTrainer(t, func(c *Config) { c.Forest.Trees = 100 })
	s := series(30, func(d int) map[string]float64 {
		return map[string]float64{"temperature": 20 + math.Sin(float64(d))}
	})
	m, metrics, err := tr.Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if math.IsNaN(metrics.R2) || math.IsInf(metrics.R2, 0) || metrics.R2 < -1 {
		t.Fatalf("unexpected r2 %v", metrics.R2)
	}
	// 25 rows, ceil(0.2*25) held out
	if metrics.TrainRows != 20 || metrics.TestRows != 5 {
		t.Fatalf("unexpected partition %d/%d", metrics.TrainRows, metrics.TestRows)
	}
	if m.LagDepth != 5 || m.Target != "temperature" || len(m.AuxFields) != 0 {
		t.Fatalf("unexpected model metadata %+v", m)
	}
	if len(m.Forest.Trees) != 100 {
		t.Fatalf("expected 100 trees, got %d", len(m.Forest.Trees))
	}
	if m.Metrics != metrics {
		t.Fatalf("model must carry its evaluation metrics")
	}
}

func TestTrainConstantTarget(t *testing.T) {
	tr := newTrainer(t, nil)
	s := series(12, func(d int) map[string]float64 {
		return map[string]float64{"temperature": 15.5, "humidity": float64(40 + d%4)}
	})
	m, metrics, err := tr.Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if math.IsNaN(metrics.R2) || math.IsInf(metrics.R2, 0) {
		t.Fatalf("r2 must be finite, got %v", metrics.R2)
	}
	for j := 4; j < 9; j++ {
		if m.Scaler.Scale[j] != 1 {
			t.Fatalf("constant target lag column %d must have scale 1, got %v", j, m.Scaler.Scale[j])
		}
	}
	x := make([]float64, m.NumFeatures())
	if got := m.Predict(x); math.Abs(got-15.5) > 1e-9 {
		t.Fatalf("constant series should predict 15.5, got %v", got)
	}
}

func TestTrainScalerUsesTrainingRowsOnly(t *testing.T) {
	tr := newTrainer(t, nil)
	s := series(20, func(d int) map[string]float64 {
		return map[string]float64{"temperature": float64(d * d)}
	})
	m, _, err := tr.Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	// rebuild the same rows and partition to compare the lag-1 column mean
	rows := 15
	trainIdx, _, err := ml.TrainTestSplit(rows, DefaultTestFraction, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	sum := 0.0
	for _, i := range trainIdx {
		d := i + 5
		sum += float64((d - 1) * (d - 1))
	}
	want := sum / float64(len(trainIdx))
	if math.Abs(m.Scaler.Mean[4]-want) > 1e-9 {
		t.Fatalf("lag-1 mean %v, want training-only mean %v", m.Scaler.Mean[4], want)
	}
}

func TestTrainDeterministic(t *testing.T) {
	s := series(25, func(d int) map[string]float64 {
		return map[string]float64{"temperature": 10 + math.Cos(float64(d)/3), "wind_speed": float64(d % 5)}
	})
	a, ma, err := newTrainer(t, nil).Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	b, mb, err := newTrainer(t, nil).Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if ma != mb || !reflect.DeepEqual(a.Forest, b.Forest) || !reflect.DeepEqual(a.Scaler, b.Scaler) {
		t.Fatalf("training is not reproducible")
	}
	if !reflect.DeepEqual(a.AuxFields, []string{"wind_speed"}) {
		t.Fatalf("unexpected aux fields %v", a.AuxFields)
	}
}

func TestTrainDataErrors(t *testing.T) {
	tr := newTrainer(t, nil)
	cases := []struct {
		name   string
		series models.TimeSeries
		want   error
	}{
		{"empty", models.TimeSeries{}, models.ErrEmptySeries},
		{"missing target", series(20, func(int) map[string]float64 {
			return map[string]float64{"humidity": 50}
		}), models.ErrMissingTarget},
		{"too short", series(6, func(d int) map[string]float64 {
			return map[string]float64{"temperature": float64(d)}
		}), models.ErrInsufficientRows},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _, err := tr.Train(tc.series)
			if m != nil {
				t.Fatalf("no model expected")
			}
			if !models.IsDataError(err) {
				t.Fatalf("expected DataError, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestFraction = 0
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected test fraction error")
	}
	cfg = DefaultConfig()
	cfg.Forest.Trees = 0
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected tree count error")
	}
}
