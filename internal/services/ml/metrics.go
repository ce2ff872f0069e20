package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"WeatherCast/internal/domain/models"
)

func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue))
}

func RMSE(yTrue, yPred []float64) float64 { return math.Sqrt(MSE(yTrue, yPred)) }

func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue))
}

// R2 is the coefficient of determination. When yTrue has no variance the
// ratio is undefined; a fit within rounding then scores 1 and anything else 0.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var ssRes float64
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if floats.Max(yTrue) == floats.Min(yTrue) {
		c := yTrue[0]
		if ssRes <= zeroSpread*math.Max(1, c*c)*float64(len(yTrue)) {
			return 1
		}
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	var ssTot float64
	for _, v := range yTrue {
		d := v - mean
		ssTot += d * d
	}
	return 1 - ssRes/ssTot
}

// Evaluate fills every regression metric for one held-out partition.
func Evaluate(yTrue, yPred []float64) models.EvalMetrics {
	mse := MSE(yTrue, yPred)
	return models.EvalMetrics{
		MSE:      mse,
		RMSE:     math.Sqrt(mse),
		MAE:      MAE(yTrue, yPred),
		R2:       R2(yTrue, yPred),
		TestRows: len(yTrue),
	}
}
