package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"WeatherCast/internal/domain/models"
)

// FitScaler computes per-column mean and population standard deviation.
// Columns whose spread is zero (up to rounding) get scale 1 so Transform
// never divides by zero.
func FitScaler(X [][]float64) (models.Scaler, error) {
	if len(X) == 0 {
		return models.Scaler{}, errors.New("scaler: empty X")
	}
	cols := len(X[0])
	s := models.Scaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			if len(X[i]) != cols {
				return models.Scaler{}, errors.New("scaler: inconsistent number of features in X rows")
			}
			col[i] = X[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if !(std > zeroSpread*math.Max(1, math.Abs(mean))) {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

const zeroSpread = 1e-12

// TransformAll applies the scaler to every row.
func TransformAll(s models.Scaler, X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = s.Transform(X[i])
	}
	return out
}
