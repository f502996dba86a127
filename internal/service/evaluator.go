package service

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"budgetpredictor/internal/model"
)

// Evaluate scores state against labeled examples.
func Evaluate(state *model.ModelState, examples []model.TrainingExample) (model.Metrics, error) {
	if state == nil {
		return model.Metrics{}, model.ErrNotTrained
	}
	if len(examples) == 0 {
		return model.Metrics{}, model.Invalidf("", "no evaluation examples")
	}

	vectors := make([][]float64, len(examples))
	labels := make([]float64, len(examples))
	for i, ex := range examples {
		if len(ex.Features) != model.NumFeatures {
			return model.Metrics{}, model.Invalidf("", "example %d has %d features, want %d", i, len(ex.Features), model.NumFeatures)
		}
		vectors[i] = ex.Features
		labels[i] = ex.Label
	}

	preds, err := PredictVectors(state, vectors)
	if err != nil {
		return model.Metrics{}, err
	}
	return ComputeMetrics(preds, labels), nil
}

// ComputeMetrics returns MAE, RMSE and R² of preds against labels.
// Both slices must have the same non-zero length. R² is reported as 0 when
// the labels have no variance (including a single example).
func ComputeMetrics(preds, labels []float64) model.Metrics {
	n := float64(len(labels))
	r2 := stat.RSquaredFrom(preds, labels, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return model.Metrics{
		MAE:  floats.Distance(preds, labels, 1) / n,
		RMSE: floats.Distance(preds, labels, 2) / math.Sqrt(n),
		R2:   r2,
		N:    len(labels),
	}
}

// FeatureImportance ranks the model's features by descending importance.
// Equal scores keep schema order.
func FeatureImportance(state *model.ModelState) ([]model.FeatureImportance, error) {
	if state == nil {
		return nil, model.ErrNotTrained
	}
	if err := state.CheckSchema(); err != nil {
		return nil, err
	}
	if len(state.Forest.Importances) != len(state.FeatureNames) {
		return nil, model.Errorf(model.ErrCorruptArtifact,
			"%d importances for %d features", len(state.Forest.Importances), len(state.FeatureNames))
	}

	ranked := make([]model.FeatureImportance, len(state.FeatureNames))
	for i, name := range state.FeatureNames {
		ranked[i] = model.FeatureImportance{Feature: name, Importance: state.Forest.Importances[i]}
	}

	// Sort by importance descending
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})
	return ranked, nil
}
