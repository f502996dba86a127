package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpredictor/internal/model"
)

// stepData has a step at x0 = 50 and a noise column x1.
func stepData() ([][]float64, []float64) {
	rnd := rand.New(rand.NewSource(3))
	X := make([][]float64, 100)
	y := make([]float64, 100)
	for i := range X {
		X[i] = []float64{float64(i), rnd.Float64()}
		if i >= 50 {
			y[i] = 100
		}
	}
	return X, y
}

func smallParams(trees int) model.Hyperparameters {
	p := model.DefaultHyperparameters()
	p.NumTrees = trees
	return p
}

func TestFitForest_Step(t *testing.T) {
	X, y := stepData()
	forest, err := FitForest(X, y, smallParams(10))
	require.NoError(t, err)
	require.Len(t, forest.Trees, 10)

	assert.InDelta(t, 0, forest.Predict([]float64{10, 0.5}), 1e-9)
	assert.InDelta(t, 100, forest.Predict([]float64{90, 0.5}), 1e-9)

	require.Len(t, forest.Importances, 2)
	assert.InDelta(t, 1, forest.Importances[0]+forest.Importances[1], 1e-9)
	assert.Greater(t, forest.Importances[0], 0.9)
}

func TestFitForest_Deterministic(t *testing.T) {
	X, y := stepData()

	a, err := FitForest(X, y, smallParams(8))
	require.NoError(t, err)
	b, err := FitForest(X, y, smallParams(8))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	p := smallParams(8)
	p.Seed = 7
	c, err := FitForest(X, y, p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Trees, c.Trees)
}

func TestFitForest_Limits(t *testing.T) {
	examples := Generate(300, 5)
	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		X[i], y[i] = ex.Features, ex.Label
	}

	t.Run("max depth", func(t *testing.T) {
		p := smallParams(4)
		p.MaxDepth = 2
		forest, err := FitForest(X, y, p)
		require.NoError(t, err)
		for _, tree := range forest.Trees {
			assert.LessOrEqual(t, tree.Depth(), 2)
		}
	})

	t.Run("min samples leaf", func(t *testing.T) {
		p := smallParams(4)
		p.MinSamplesLeaf = 10
		forest, err := FitForest(X, y, p)
		require.NoError(t, err)
		for _, tree := range forest.Trees {
			for _, n := range tree.Nodes {
				if n.Feature < 0 {
					assert.GreaterOrEqual(t, n.Samples, 10)
				}
			}
		}
	})

	t.Run("max features", func(t *testing.T) {
		p := smallParams(4)
		p.MaxFeatures = 3
		forest, err := FitForest(X, y, p)
		require.NoError(t, err)
		assert.Len(t, forest.Importances, model.NumFeatures)
	})

	t.Run("fully grown trees fit their bootstrap", func(t *testing.T) {
		forest, err := FitForest(X, y, smallParams(1))
		require.NoError(t, err)
		for _, n := range forest.Trees[0].Nodes {
			if n.Feature >= 0 {
				assert.Greater(t, n.Right, n.Left)
			}
		}
		assert.Greater(t, forest.Trees[0].Depth(), 5)
	})
}

func TestFitForest_Errors(t *testing.T) {
	X, y := stepData()

	tests := []struct {
		name   string
		X      [][]float64
		y      []float64
		params model.Hyperparameters
	}{
		{"no rows", nil, nil, smallParams(3)},
		{"label count", X, y[:10], smallParams(3)},
		{"no trees", X, y, smallParams(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitForest(tt.X, tt.y, tt.params)
			assert.ErrorIs(t, err, model.ErrTraining)
		})
	}
}

func TestFitForest_ConstantLabels(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{5, 5, 5, 5}

	forest, err := FitForest(X, y, smallParams(3))
	require.NoError(t, err)
	for _, tree := range forest.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
	assert.Equal(t, 5.0, forest.Predict([]float64{10}))
	// no split ever reduced impurity
	assert.Equal(t, []float64{0}, forest.Importances)
}

func TestNormalizeParams(t *testing.T) {
	p := normalizeParams(model.Hyperparameters{NumTrees: 5, MaxDepth: -1, MaxFeatures: 40}, 11)
	assert.Equal(t, 2, p.MinSamplesSplit)
	assert.Equal(t, 1, p.MinSamplesLeaf)
	assert.Equal(t, 11, p.MaxFeatures)
	assert.Equal(t, 0, p.MaxDepth)
}
