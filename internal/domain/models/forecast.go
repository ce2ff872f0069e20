package models

import "time"

// ForecastStep is one predicted day.
type ForecastStep struct {
	Day   int       `json:"day"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Forecast is the ordered prediction trace for steps 1..k. Truncated is set
// when k is smaller than the requested horizon.
type Forecast struct {
	Location  string         `json:"location"`
	Model     string         `json:"model"`
	Target    string         `json:"target"`
	Requested int            `json:"requested"`
	Steps     []ForecastStep `json:"steps"`
	Truncated bool           `json:"truncated"`
	IssuedAt  time.Time      `json:"issued_at"`
}

// Values returns the predicted values in step order.
func (f *Forecast) Values() []float64 {
	out := make([]float64, len(f.Steps))
	for i, s := range f.Steps {
		out[i] = s.Value
	}
	return out
}

// TrainResult summarizes a completed training run.
type TrainResult struct {
	Model     string      `json:"model"`
	Target    string      `json:"target"`
	LagDepth  int         `json:"lag_depth"`
	AuxFields []string    `json:"aux_fields"`
	Rows      int         `json:"rows"`
	Metrics   EvalMetrics `json:"metrics"`
	TrainedAt time.Time   `json:"trained_at"`
}
