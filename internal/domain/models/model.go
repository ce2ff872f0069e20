package models

import (
	"fmt"
	"time"
)

// ModelSchemaVersion is bumped whenever the persisted TrainedModel layout changes.
const ModelSchemaVersion = 1

// FeatureRow is one supervised example: the feature vector in layout order and
// the target value observed at Time.
type FeatureRow struct {
	Time     time.Time
	Features []float64
	Target   float64
}

// TreeNode is a node of a flattened regression tree. Leaves carry Value;
// internal nodes route x[Feature] <= Threshold to Left, otherwise to Right.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// Tree is a regression tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []TreeNode
}

// Predict walks the tree for one feature vector.
func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of regression trees; the prediction is the mean
// of the tree outputs.
type Forest struct {
	Trees           []Tree
	NumFeatures     int
	Seed            int64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
}

// Predict averages every tree in order so the result is reproducible bit for bit.
func (f Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Scaler holds per-column standardization parameters. Scale is never zero.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// Transform returns (x - mean) / scale for each column; x is not modified.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// EvalMetrics are computed on the held-out partition.
type EvalMetrics struct {
	MSE       float64 `json:"mean_squared_error"`
	RMSE      float64 `json:"root_mean_squared_error"`
	MAE       float64 `json:"mean_absolute_error"`
	R2        float64 `json:"r2_score"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// TrainedModel owns a fitted forest together with the scaler it was trained
// behind and the feature layout both depend on. A TrainedModel is never
// mutated after the trainer returns it; retraining produces a new value, and
// loaded models are shared read-only between concurrent forecasts.
type TrainedModel struct {
	SchemaVersion int
	Target        string
	AuxFields     []string
	LagDepth      int
	FeatureNames  []string
	Scaler        Scaler
	Forest        Forest
	TrainedAt     time.Time
	Metrics       EvalMetrics
}

// NumFeatures is the width of the feature vector the model expects.
func (m *TrainedModel) NumFeatures() int { return len(m.FeatureNames) }

// Predict standardizes a raw feature vector with the persisted scaler and runs the forest.
func (m *TrainedModel) Predict(features []float64) float64 {
	return m.Forest.Predict(m.Scaler.Transform(features))
}

// Validate checks internal consistency; a model that fails it must not be used.
func (m *TrainedModel) Validate() error {
	if m.SchemaVersion != ModelSchemaVersion {
		return fmt.Errorf("%w: got %d want %d", ErrSchemaVersion, m.SchemaVersion, ModelSchemaVersion)
	}
	if m.Target == "" {
		return fmt.Errorf("target field is empty")
	}
	if m.LagDepth < 1 {
		return fmt.Errorf("lag depth %d < 1", m.LagDepth)
	}
	want := CalendarFeatureCount + m.LagDepth*(1+len(m.AuxFields))
	if len(m.FeatureNames) != want {
		return fmt.Errorf("feature layout has %d names, want %d", len(m.FeatureNames), want)
	}
	if len(m.Scaler.Mean) != want || len(m.Scaler.Scale) != want {
		return fmt.Errorf("scaler width %d/%d, want %d", len(m.Scaler.Mean), len(m.Scaler.Scale), want)
	}
	for j, s := range m.Scaler.Scale {
		if s == 0 {
			return fmt.Errorf("scaler column %d has zero scale", j)
		}
	}
	if len(m.Forest.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range m.Forest.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= want {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad child index", ti, ni)
			}
		}
	}
	return nil
}

// CalendarFeatureCount is the number of leading calendar features in every
// feature vector: day of year, month, day, year.
const CalendarFeatureCount = 4
