package forecaster

import (
	"math"
	"time"

	"WeatherCast/internal/domain/models"
)

// buffer is the request-local history a forecast runs over. Real
// observations occupy [0, real); predictions are appended at cursor. Nothing
// before cursor is ever rewritten.
type buffer struct {
	times  []time.Time
	target []float64   // NaN where missing
	aux    [][]float64 // aux[j][i]; NaN where missing
	real   int
	cursor int
}

func newBuffer(series models.TimeSeries, target string, auxFields []string, capacity int) *buffer {
	n := series.Len()
	b := &buffer{
		times:  make([]time.Time, n, n+capacity),
		target: make([]float64, n, n+capacity),
		aux:    make([][]float64, len(auxFields)),
	}
	for j := range b.aux {
		b.aux[j] = make([]float64, n, n+capacity)
	}
	for i, o := range series.Observations {
		b.times[i] = o.Time
		b.target[i] = valueOrNaN(o, target)
		for j, f := range auxFields {
			b.aux[j][i] = valueOrNaN(o, f)
		}
	}
	b.real = n
	b.cursor = n
	return b
}

func valueOrNaN(o models.Observation, field string) float64 {
	if v, ok := o.Value(field); ok {
		return v
	}
	return math.NaN()
}

// lastTime returns the timestamp at cursor-1.
func (b *buffer) lastTime() (time.Time, bool) {
	if b.cursor == 0 {
		return time.Time{}, false
	}
	return b.times[b.cursor-1], true
}

// targetLags fills dst with target values at cursor-1 .. cursor-len(dst).
// It reports false if any of them is out of range or missing.
func (b *buffer) targetLags(dst []float64) bool {
	for k := 1; k <= len(dst); k++ {
		i := b.cursor - k
		if i < 0 || math.IsNaN(b.target[i]) {
			return false
		}
		dst[k-1] = b.target[i]
	}
	return true
}

// auxLags fills dst with auxiliary field j at the same positions; any value
// that is out of range or missing becomes sentinel.
func (b *buffer) auxLags(j int, dst []float64, sentinel float64) {
	for k := 1; k <= len(dst); k++ {
		i := b.cursor - k
		if i < 0 || math.IsNaN(b.aux[j][i]) {
			dst[k-1] = sentinel
			continue
		}
		dst[k-1] = b.aux[j][i]
	}
}

// appendPrediction records a synthetic observation at t. Auxiliary fields
// repeat the last real observation; they are never forecast.
func (b *buffer) appendPrediction(t time.Time, v float64) {
	b.times = append(b.times, t)
	b.target = append(b.target, v)
	for j := range b.aux {
		carried := math.NaN()
		if b.real > 0 {
			carried = b.aux[j][b.real-1]
		}
		b.aux[j] = append(b.aux[j], carried)
	}
	b.cursor++
}
