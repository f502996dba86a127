package model

import "time"

// BatchPredictRequest represents a batch inference request
type BatchPredictRequest struct {
	Records []RawRecord `json:"records"`
}

// PredictResponse represents a single prediction response
type PredictResponse struct {
	PredictedBudget float64 `json:"predicted_budget"`
	ModelID         string  `json:"model_id"`
	Took            int64   `json:"took_ms"` // Response time in milliseconds
}

// BatchPredictResponse represents a batch prediction response
type BatchPredictResponse struct {
	Predictions []float64 `json:"predictions"`
	Count       int       `json:"count"`
	ModelID     string    `json:"model_id"`
	Took        int64     `json:"took_ms"`
}

// ModelInfoResponse describes the model currently being served
type ModelInfoResponse struct {
	ModelID      string          `json:"model_id"`
	TrainedAt    time.Time       `json:"trained_at"`
	FeatureNames []string        `json:"feature_names"`
	NumTrees     int             `json:"num_trees"`
	MaxTreeDepth int             `json:"max_tree_depth"`
	Params       Hyperparameters `json:"hyperparameters"`
	Holdout      *Metrics        `json:"holdout,omitempty"`
}

// ImportanceResponse represents the ranked feature importance list
type ImportanceResponse struct {
	ModelID    string              `json:"model_id"`
	Importance []FeatureImportance `json:"importance"`
}

// TrainingRunListResponse represents a page of training runs
type TrainingRunListResponse struct {
	Runs   []TrainingRun `json:"runs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// PredictionLogListResponse represents recently logged predictions
type PredictionLogListResponse struct {
	ModelID     string          `json:"model_id"`
	Predictions []PredictionLog `json:"predictions"`
	Count       int             `json:"count"`
}

// SimilarPredictionsResponse pairs a new estimate with the logged
// predictions closest to it
type SimilarPredictionsResponse struct {
	ModelID         string          `json:"model_id"`
	PredictedBudget float64         `json:"predicted_budget"`
	Similar         []PredictionLog `json:"similar"`
	Count           int             `json:"count"`
}

// TrainingReport summarises one offline training run
type TrainingReport struct {
	RunID            string              `json:"run_id"`
	ModelID          string              `json:"model_id"`
	Samples          int                 `json:"samples"`
	Seed             int64               `json:"seed"`
	TrainSize        int                 `json:"train_size"`
	TestSize         int                 `json:"test_size"`
	Metrics          Metrics             `json:"metrics"`
	Importance       []FeatureImportance `json:"importance"`
	ArtifactPath     string              `json:"artifact_path,omitempty"`
	SamplePrediction float64             `json:"sample_prediction"`
	Took             int64               `json:"took_ms"`
}
