package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// TrainingRun is one offline training run as recorded in Postgres.
type TrainingRun struct {
	RunID           string         `json:"run_id" db:"run_id"`
	ModelID         string         `json:"model_id" db:"model_id"`
	Samples         int            `json:"samples" db:"samples"`
	Seed            int64          `json:"seed" db:"seed"`
	TrainSize       int            `json:"train_size" db:"train_size"`
	TestSize        int            `json:"test_size" db:"test_size"`
	MAE             float64        `json:"mae" db:"mae"`
	RMSE            float64        `json:"rmse" db:"rmse"`
	R2              float64        `json:"r2" db:"r2"`
	RankedFeatures  pq.StringArray `json:"ranked_features" db:"ranked_features"`
	Importances     JSONMap        `json:"importances,omitempty" db:"importances"`
	Hyperparameters JSONMap        `json:"hyperparameters,omitempty" db:"hyperparameters"`
	ArtifactPath    *string        `json:"artifact_path,omitempty" db:"artifact_path"`
	TrainingTimeMs  int64          `json:"training_time_ms" db:"training_time_ms"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// PredictionLog is one served prediction as recorded in Postgres.
// Standardized is the encoded record after the serving model's scaler, so
// distances between logs of one model weigh every feature alike.
type PredictionLog struct {
	ID              int64           `json:"id" db:"id"`
	RequestID       *string         `json:"request_id,omitempty" db:"request_id"`
	ModelID         string          `json:"model_id" db:"model_id"`
	Features        JSONMap         `json:"features" db:"features"`
	Standardized    pgvector.Vector `json:"-" db:"standardized"`
	PredictedBudget float64         `json:"predicted_budget" db:"predicted_budget"`
	ResponseTimeMs  int64           `json:"response_time_ms" db:"response_time_ms"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	Distance        *float64        `json:"distance,omitempty" db:"distance"` // set by similarity queries
}

// JSONMap represents a JSON object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
