package service

import (
	"math"
	"time"

	"github.com/google/uuid"

	"budgetpredictor/internal/model"
)

// Trainer fits a standardizing transform and a random forest on encoded examples.
type Trainer struct {
	params model.Hyperparameters
}

// NewTrainer creates a new trainer with the given forest hyperparameters
func NewTrainer(params model.Hyperparameters) *Trainer {
	return &Trainer{params: params}
}

// Fit returns a new fitted model state. It never touches a previously
// fitted state, so callers can swap the result in while older states are
// still serving.
func (t *Trainer) Fit(examples []model.TrainingExample) (*model.ModelState, error) {
	if len(examples) == 0 {
		return nil, model.Errorf(model.ErrTraining, "no training examples")
	}

	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		if len(ex.Features) != model.NumFeatures {
			return nil, model.Errorf(model.ErrTraining,
				"example %d has %d features, want %d", i, len(ex.Features), model.NumFeatures)
		}
		for j, v := range ex.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, model.Errorf(model.ErrTraining, "example %d feature %d is not finite", i, j)
			}
		}
		if math.IsNaN(ex.Label) || math.IsInf(ex.Label, 0) {
			return nil, model.Errorf(model.ErrTraining, "example %d label is not finite", i)
		}
		X[i] = ex.Features
		y[i] = ex.Label
	}

	scaler := FitScaler(X)
	Z, err := TransformAll(&scaler, X)
	if err != nil {
		return nil, model.Wrap(model.ErrTraining, err, "standardizing features")
	}

	forest, err := FitForest(Z, y, t.params)
	if err != nil {
		return nil, err
	}

	return &model.ModelState{
		ID:           uuid.NewString(),
		TrainedAt:    time.Now().UTC(),
		FeatureNames: model.FeatureNames(),
		Scaler:       scaler,
		Forest:       forest,
		Params:       normalizeParams(t.params, model.NumFeatures),
	}, nil
}
