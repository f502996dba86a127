package model

import (
	"fmt"
	"math"
	"time"
)

// StandardScaler holds per-feature centering and scaling parameters.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Transform writes the standardized form of x into dst and returns it.
// dst is allocated when it is nil or too short.
func (s *StandardScaler) Transform(x, dst []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, Errorf(ErrSchemaMismatch, "vector has %d features, scaler expects %d", len(x), len(s.Mean))
	}
	if cap(dst) < len(x) {
		dst = make([]float64, len(x))
	}
	dst = dst[:len(x)]
	for j, v := range x {
		dst[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return dst, nil
}

// TreeNode is one node of a regression tree stored in a flat slice.
// Leaves have Feature == -1; internal nodes send x[Feature] <= Threshold left.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// Tree is a fitted regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []TreeNode
}

// Predict walks the tree for one standardized vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// Forest is a bagged ensemble of regression trees.
type Forest struct {
	Trees []Tree
	// Importances holds the normalized impurity decrease per feature.
	Importances []float64
}

// Predict averages the trees' outputs for one standardized vector.
func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Hyperparameters configure forest fitting.
type Hyperparameters struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"`
	Seed            int64 `json:"seed"`
}

// DefaultHyperparameters mirrors a 100-tree, fully grown, seed-42 forest.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		NumTrees:        100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Seed:            42,
	}
}

// Metrics summarises prediction accuracy against labeled data.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	N    int     `json:"n"`
}

// FeatureImportance is one entry of a ranked importance list.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ModelState is an immutable fitted model: standardization, estimator and
// the feature order used to build them. ID, TrainedAt, Params and Holdout
// are informational.
type ModelState struct {
	ID           string
	TrainedAt    time.Time
	FeatureNames []string
	Scaler       StandardScaler
	Forest       Forest
	Params       Hyperparameters
	Holdout      *Metrics
}

// Validate reports whether all three required components are present and
// agree on the number of features.
func (m *ModelState) Validate() error {
	if m == nil {
		return fmt.Errorf("model state is nil")
	}
	n := len(m.FeatureNames)
	if n == 0 {
		return fmt.Errorf("feature order is empty")
	}
	if len(m.Scaler.Mean) != n || len(m.Scaler.Scale) != n {
		return fmt.Errorf("scaler has %d/%d parameters for %d features", len(m.Scaler.Mean), len(m.Scaler.Scale), n)
	}
	for j, s := range m.Scaler.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("scaler scale for %s is %v", m.FeatureNames[j], s)
		}
	}
	if len(m.Forest.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range m.Forest.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, node := range t.Nodes {
			if node.Feature < 0 {
				continue
			}
			if node.Feature >= n || node.Left <= ni || node.Right <= ni ||
				node.Left >= len(t.Nodes) || node.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

// CheckSchema fails with ErrSchemaMismatch when the model's feature order
// differs from the current schema.
func (m *ModelState) CheckSchema() error {
	if len(m.FeatureNames) != NumFeatures {
		return Errorf(ErrSchemaMismatch, "model has %d features, schema has %d", len(m.FeatureNames), NumFeatures)
	}
	for i, name := range m.FeatureNames {
		if name != featureNames[i] {
			return Errorf(ErrSchemaMismatch, "feature %d is %q in model, %q in schema", i, name, featureNames[i])
		}
	}
	return nil
}

// PredictVector standardizes one encoded vector and applies the forest.
// scratch may be nil; it is reused when large enough.
func (m *ModelState) PredictVector(x, scratch []float64) (float64, error) {
	z, err := m.Scaler.Transform(x, scratch)
	if err != nil {
		return 0, err
	}
	return m.Forest.Predict(z), nil
}
