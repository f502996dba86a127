package service

import (
	"cmp"
	"math/rand"
	"runtime"
	"slices"
	"sync"

	"budgetpredictor/internal/model"
)

// FitForest grows params.NumTrees regression trees on bootstrap samples of
// (X, y). Each tree gets its own seed drawn up front from params.Seed, so the
// result does not depend on how many trees are built concurrently.
func FitForest(X [][]float64, y []float64, params model.Hyperparameters) (model.Forest, error) {
	if len(X) == 0 {
		return model.Forest{}, model.Errorf(model.ErrTraining, "no training rows")
	}
	if len(X) != len(y) {
		return model.Forest{}, model.Errorf(model.ErrTraining, "%d rows but %d labels", len(X), len(y))
	}
	if params.NumTrees < 1 {
		return model.Forest{}, model.Errorf(model.ErrTraining, "num_trees must be positive, got %d", params.NumTrees)
	}
	params = normalizeParams(params, len(X[0]))

	master := rand.New(rand.NewSource(params.Seed))
	seeds := make([]int64, params.NumTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]model.Tree, params.NumTrees)
	importances := make([][]float64, params.NumTrees)

	workers := min(runtime.GOMAXPROCS(0), params.NumTrees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				b := newTreeBuilder(X, y, params, seeds[t])
				trees[t], importances[t] = b.fit()
			}
		}()
	}
	for t := range trees {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	return model.Forest{
		Trees:       trees,
		Importances: averageImportances(importances, len(X[0])),
	}, nil
}

func normalizeParams(p model.Hyperparameters, nFeatures int) model.Hyperparameters {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > nFeatures {
		p.MaxFeatures = nFeatures
	}
	if p.MaxDepth < 0 {
		p.MaxDepth = 0
	}
	return p
}

// averageImportances averages per-tree importances (each already summing
// to 1) and renormalizes the result.
func averageImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	normalize(out)
	return out
}

func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for j := range v {
		v[j] /= total
	}
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	params     model.Hyperparameters
	rnd        *rand.Rand
	nodes      []model.TreeNode
	importance []float64
	scratch    []int
	features   []int
}

func newTreeBuilder(X [][]float64, y []float64, params model.Hyperparameters, seed int64) *treeBuilder {
	nFeatures := len(X[0])
	features := make([]int, nFeatures)
	for j := range features {
		features[j] = j
	}
	return &treeBuilder{
		X:          X,
		y:          y,
		params:     params,
		rnd:        rand.New(rand.NewSource(seed)),
		importance: make([]float64, nFeatures),
		scratch:    make([]int, len(X)),
		features:   features,
	}
}

// fit draws a bootstrap sample and grows one tree on it.
func (b *treeBuilder) fit() (model.Tree, []float64) {
	n := len(b.y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rnd.Intn(n)
	}
	b.grow(idx, 0)
	normalize(b.importance)
	return model.Tree{Nodes: b.nodes}, b.importance
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// grow appends the subtree for idx and returns its root's node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	n := len(idx)
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	mean := sum / float64(n)

	self := len(b.nodes)
	b.nodes = append(b.nodes, model.TreeNode{Feature: -1, Value: mean, Samples: n})

	if n < b.params.MinSamplesSplit || n < 2*b.params.MinSamplesLeaf {
		return self
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}
	if isConstant(b.y, idx) {
		return self
	}

	best, ok := b.bestSplit(idx, sum)
	if !ok {
		return self
	}
	b.importance[best.feature] += best.gain

	left := make([]int, 0, n/2)
	right := make([]int, 0, n/2)
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = model.TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      l,
		Right:     r,
		Value:     mean,
		Samples:   n,
	}
	return self
}

// bestSplit scans every candidate feature for the threshold that minimises
// the children's summed squared error. gain is the weighted impurity
// decrease n*imp - nL*impL - nR*impR.
func (b *treeBuilder) bestSplit(idx []int, sum float64) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	candidates := b.candidateFeatures()

	best := split{feature: -1}
	bestProxy := 0.0
	order := b.scratch[:n]

	for _, f := range candidates {
		copy(order, idx)
		slices.SortFunc(order, func(a, c int) int {
			return cmp.Compare(b.X[a][f], b.X[c][f])
		})

		sumL := 0.0
		for k := 1; k < n; k++ {
			sumL += b.y[order[k-1]]
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.X[order[k-1]][f], b.X[order[k]][f]
			if lo >= hi {
				continue
			}
			sumR := sum - sumL
			proxy := sumL*sumL/float64(k) + sumR*sumR/float64(n-k)
			if best.feature < 0 || proxy > bestProxy {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr}
				bestProxy = proxy
			}
		}
	}
	if best.feature < 0 {
		return best, false
	}
	best.gain = max(bestProxy-sum*sum/float64(n), 0)
	return best, true
}

// candidateFeatures returns the features considered at one node: all of
// them, or a random subset of MaxFeatures.
func (b *treeBuilder) candidateFeatures() []int {
	if b.params.MaxFeatures >= len(b.features) {
		return b.features
	}
	b.rnd.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})
	return b.features[:b.params.MaxFeatures]
}

func isConstant(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
