package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplit permutes row indices with a fixed seed and holds out
// ceil(n*testFraction) of them, clamped so both sides are non-empty.
// Rows are assigned without regard to time, so lagged neighbours of a test
// row can sit in the training partition.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, fmt.Errorf("test fraction must be in (0,1), got %v", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Gather selects rows of X and y by index.
func Gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
