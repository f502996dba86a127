package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpredictor/internal/model"
)

// newTestRepository connects to TEST_DATABASE_URL, a database with the
// pgvector extension available. Tests are skipped when it is unset.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := NewPostgresRepository(dsn, 4, 2)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestPostgresRepository_TrainingRuns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	path := "/tmp/model.gob"
	run := &model.TrainingRun{
		RunID:          uuid.NewString(),
		ModelID:        uuid.NewString(),
		Samples:        2000,
		Seed:           42,
		TrainSize:      1600,
		TestSize:       400,
		MAE:            12000.5,
		RMSE:           18000.25,
		R2:             0.97,
		RankedFeatures: model.FeatureNames(),
		Importances:    model.JSONMap{"project_area_sqft": 0.6},
		Hyperparameters: model.JSONMap{
			"num_trees": 100,
		},
		ArtifactPath:   &path,
		TrainingTimeMs: 850,
	}
	require.NoError(t, repo.LogTrainingRun(ctx, run))

	got, err := repo.GetTrainingRun(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ModelID, got.ModelID)
	assert.Equal(t, []string(run.RankedFeatures), []string(got.RankedFeatures))
	assert.Equal(t, 0.6, got.Importances["project_area_sqft"])
	assert.Equal(t, float64(100), got.Hyperparameters["num_trees"])
	require.NotNil(t, got.ArtifactPath)
	assert.Equal(t, path, *got.ArtifactPath)
	assert.False(t, got.CreatedAt.IsZero())

	runs, err := repo.ListTrainingRuns(ctx, 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.RunID, runs[0].RunID)

	missing, err := repo.GetTrainingRun(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgresRepository_PredictionLogs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	modelID := uuid.NewString()

	vec := func(area float32) pgvector.Vector {
		v := make([]float32, model.NumFeatures)
		v[0] = area
		return pgvector.NewVector(v)
	}
	reqID := "req-" + modelID
	require.NoError(t, repo.LogPrediction(ctx, &model.PredictionLog{
		RequestID:       &reqID,
		ModelID:         modelID,
		Features:        model.JSONMap{"project_area_sqft": 1000},
		Standardized:    vec(1000),
		PredictedBudget: 250000,
	}))

	success, errs := repo.BatchLogPredictions(ctx, []model.PredictionLog{
		{ModelID: modelID, Features: model.JSONMap{}, Standardized: vec(5000), PredictedBudget: 1200000},
		{ModelID: modelID, Features: model.JSONMap{}, Standardized: vec(9000), PredictedBudget: 2100000},
	})
	assert.Empty(t, errs)
	assert.Equal(t, 2, success)

	recent, err := repo.RecentPredictions(ctx, modelID, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	query := make([]float32, model.NumFeatures)
	query[0] = 5100
	nearest, err := repo.NearestPredictions(ctx, modelID, query, 2)
	require.NoError(t, err)
	require.Len(t, nearest, 2)
	assert.Equal(t, float32(5000), nearest[0].Standardized.Slice()[0])
	require.NotNil(t, nearest[0].Distance)
	assert.InDelta(t, 100, *nearest[0].Distance, 1e-6)
	assert.LessOrEqual(t, *nearest[0].Distance, *nearest[1].Distance)

	// other models' logs are never returned
	other, err := repo.NearestPredictions(ctx, uuid.NewString(), query, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}
