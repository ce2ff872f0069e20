package ml

import (
	"math"
	"math/rand"
	"slices"

	"WeatherCast/internal/domain/models"
)

// TreeParams are the CART stopping rules. Zero MaxDepth means unlimited,
// zero MaxFeatures means every feature is considered at each split.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
}

func (p TreeParams) withDefaults() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// FitTree grows a regression tree on the rows of X selected by idx (indices
// may repeat for bootstrap samples). Splits maximize variance reduction.
// rnd is only used when MaxFeatures subsamples features.
func FitTree(X [][]float64, y []float64, idx []int, p TreeParams, rnd *rand.Rand) models.Tree {
	g := &treeGrower{X: X, y: y, p: p.withDefaults(), rnd: rnd}
	if len(X) > 0 {
		g.nFeatures = len(X[0])
	}
	rows := slices.Clone(idx)
	g.grow(rows, 0)
	return models.Tree{Nodes: g.nodes}
}

type treeGrower struct {
	X         [][]float64
	y         []float64
	p         TreeParams
	rnd       *rand.Rand
	nFeatures int
	nodes     []models.TreeNode
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	pos       int // rows[:pos] go left after sorting by feature
}

// grow appends the subtree for rows in preorder and returns its root index.
func (g *treeGrower) grow(rows []int, depth int) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, models.TreeNode{Leaf: true, Samples: len(rows), Value: g.mean(rows)})

	if len(rows) < g.p.MinSamplesSplit || len(rows) < 2*g.p.MinSamplesLeaf {
		return id
	}
	if g.p.MaxDepth > 0 && depth >= g.p.MaxDepth {
		return id
	}
	if g.constant(rows) {
		return id
	}
	best, ok := g.bestSplit(rows)
	if !ok {
		return id
	}

	g.sortBy(rows, best.feature)
	left := slices.Clone(rows[:best.pos])
	right := slices.Clone(rows[best.pos:])

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[id] = models.TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      l,
		Right:     r,
		Value:     g.nodes[id].Value,
		Samples:   len(rows),
	}
	return id
}

func (g *treeGrower) bestSplit(rows []int) (split, bool) {
	n := len(rows)
	var total float64
	for _, i := range rows {
		total += g.y[i]
	}
	parent := total * total / float64(n)

	best := split{feature: -1, gain: gainEpsilon * math.Max(1, parent)}
	work := slices.Clone(rows)
	for _, f := range g.candidateFeatures() {
		g.sortBy(work, f)
		var sumL float64
		for k := 0; k < n-1; k++ {
			sumL += g.y[work[k]]
			nl := k + 1
			xa, xb := g.X[work[k]][f], g.X[work[k+1]][f]
			if xa == xb {
				continue
			}
			if nl < g.p.MinSamplesLeaf || n-nl < g.p.MinSamplesLeaf {
				continue
			}
			sumR := total - sumL
			gain := sumL*sumL/float64(nl) + sumR*sumR/float64(n-nl) - parent
			if gain > best.gain {
				thr := xa + (xb-xa)/2
				if thr >= xb {
					thr = xa
				}
				best = split{feature: f, threshold: thr, gain: gain, pos: nl}
			}
		}
	}
	return best, best.feature >= 0
}

const gainEpsilon = 1e-12

func (g *treeGrower) candidateFeatures() []int {
	k := g.p.MaxFeatures
	if k <= 0 || k >= g.nFeatures || g.rnd == nil {
		all := make([]int, g.nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	feats := g.rnd.Perm(g.nFeatures)[:k]
	slices.Sort(feats)
	return feats
}

func (g *treeGrower) sortBy(rows []int, f int) {
	slices.SortStableFunc(rows, func(a, b int) int {
		xa, xb := g.X[a][f], g.X[b][f]
		switch {
		case xa < xb:
			return -1
		case xa > xb:
			return 1
		default:
			return 0
		}
	})
}

func (g *treeGrower) mean(rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	if g.constant(rows) {
		return g.y[rows[0]]
	}
	s := 0.0
	for _, i := range rows {
		s += g.y[i]
	}
	return s / float64(len(rows))
}

func (g *treeGrower) constant(rows []int) bool {
	if len(rows) == 0 {
		return true
	}
	for _, i := range rows[1:] {
		if g.y[i] != g.y[rows[0]] {
			return false
		}
	}
	return true
}
