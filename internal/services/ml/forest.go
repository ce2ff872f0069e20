package ml

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"

	"WeatherCast/internal/domain/models"
)

// ForestParams configures a bagged regression forest.
type ForestParams struct {
	Trees     int
	Seed      int64
	Bootstrap bool
	Tree      TreeParams
	// Workers bounds concurrent tree fits; zero means GOMAXPROCS.
	Workers int
}

// DefaultForestParams mirrors a 100-tree, fully grown, bootstrapped forest with seed 42.
func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:     100,
		Seed:      42,
		Bootstrap: true,
		Tree:      TreeParams{MinSamplesSplit: 2, MinSamplesLeaf: 1},
	}
}

// FitForest trains p.Trees trees. Tree i draws its bootstrap sample and
// feature subsets from seed p.Seed+i and is stored at index i, so the fitted
// forest does not depend on goroutine scheduling.
func FitForest(X [][]float64, y []float64, p ForestParams) (models.Forest, error) {
	n := len(X)
	if n == 0 {
		return models.Forest{}, errors.New("forest: empty X")
	}
	if len(y) != n {
		return models.Forest{}, errors.New("forest: X and y length mismatch")
	}
	if p.Trees <= 0 {
		return models.Forest{}, errors.New("forest: number of trees must be positive")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]models.Tree, p.Trees)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for t := 0; t < p.Trees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			rnd := rand.New(rand.NewSource(p.Seed + int64(idx)))
			sample := make([]int, n)
			for j := range sample {
				if p.Bootstrap {
					sample[j] = rnd.Intn(n)
				} else {
					sample[j] = j
				}
			}
			trees[idx] = FitTree(X, y, sample, p.Tree, rnd)
		}(t)
	}
	wg.Wait()

	return models.Forest{
		Trees:           trees,
		NumFeatures:     len(X[0]),
		Seed:            p.Seed,
		MaxDepth:        p.Tree.MaxDepth,
		MinSamplesSplit: p.Tree.MinSamplesSplit,
		MinSamplesLeaf:  p.Tree.MinSamplesLeaf,
		MaxFeatures:     p.Tree.MaxFeatures,
	}, nil
}
