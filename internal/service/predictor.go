package service

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"budgetpredictor/internal/model"
)

// ArtifactLoader reads a fitted model state from storage.
type ArtifactLoader interface {
	Load(path string) (*model.ModelState, error)
}

// Predictor serves predictions from the currently installed model state.
// The state is replaced wholesale by Swap or Reload; readers always see
// either the old or the new state, never a mix.
type Predictor struct {
	state atomic.Pointer[model.ModelState]
}

// NewPredictor creates a predictor with no model installed.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// Swap validates state and installs it, returning the state it replaced.
func (p *Predictor) Swap(state *model.ModelState) (*model.ModelState, error) {
	if err := state.Validate(); err != nil {
		return nil, model.Wrap(model.ErrCorruptArtifact, err, "refusing to install model")
	}
	return p.state.Swap(state), nil
}

// Reload loads the artifact at path and installs it. On failure the
// previously installed state keeps serving.
func (p *Predictor) Reload(loader ArtifactLoader, path string) (*model.ModelState, error) {
	state, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := p.Swap(state); err != nil {
		return nil, err
	}
	slog.Info("model installed", "model_id", state.ID, "path", path, "trees", len(state.Forest.Trees))
	return state, nil
}

// State returns the installed model state or ErrNotTrained.
func (p *Predictor) State() (*model.ModelState, error) {
	state := p.state.Load()
	if state == nil {
		return nil, model.ErrNotTrained
	}
	return state, nil
}

// Ready reports whether a model is installed.
func (p *Predictor) Ready() bool {
	return p.state.Load() != nil
}

// Predict validates, encodes and scores one record.
func (p *Predictor) Predict(raw model.RawRecord) (float64, error) {
	out, err := p.PredictBatch([]model.RawRecord{raw})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Scored is the outcome of scoring a batch against one model state.
type Scored struct {
	State       *model.ModelState
	Vectors     [][]float64
	Predictions []float64
}

// PredictBatch scores records in order. A record that fails validation
// fails the whole batch; the error names its index.
func (p *Predictor) PredictBatch(raws []model.RawRecord) ([]float64, error) {
	scored, err := p.Score(raws)
	if err != nil {
		return nil, err
	}
	return scored.Predictions, nil
}

// Score is PredictBatch that also reports which state produced the
// predictions and the encoded vectors it scored.
func (p *Predictor) Score(raws []model.RawRecord) (*Scored, error) {
	state, err := p.State()
	if err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(raws))
	for i, raw := range raws {
		x, err := EncodeRaw(raw)
		if err != nil {
			if len(raws) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors[i] = x
	}
	preds, err := PredictVectors(state, vectors)
	if err != nil {
		return nil, err
	}
	return &Scored{State: state, Vectors: vectors, Predictions: preds}, nil
}

// PredictRecords scores typed records against state.
func PredictRecords(state *model.ModelState, recs []model.FeatureRecord) ([]float64, error) {
	vectors := make([][]float64, len(recs))
	for i, rec := range recs {
		x, err := Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors[i] = x
	}
	return PredictVectors(state, vectors)
}

// PredictVectors scores encoded vectors against state.
func PredictVectors(state *model.ModelState, vectors [][]float64) ([]float64, error) {
	if state == nil {
		return nil, model.ErrNotTrained
	}
	if err := state.CheckSchema(); err != nil {
		return nil, err
	}
	out := make([]float64, len(vectors))
	scratch := make([]float64, model.NumFeatures)
	for i, x := range vectors {
		v, err := state.PredictVector(x, scratch)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
