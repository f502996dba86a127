package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetpredictor/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// schemaStatements create the run and prediction log tables.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS training_runs (
		run_id           TEXT PRIMARY KEY,
		model_id         TEXT NOT NULL,
		samples          INTEGER NOT NULL,
		seed             BIGINT NOT NULL,
		train_size       INTEGER NOT NULL,
		test_size        INTEGER NOT NULL,
		mae              DOUBLE PRECISION NOT NULL,
		rmse             DOUBLE PRECISION NOT NULL,
		r2               DOUBLE PRECISION NOT NULL,
		ranked_features  TEXT[] NOT NULL DEFAULT '{}',
		importances      JSONB,
		hyperparameters  JSONB,
		artifact_path    TEXT,
		training_time_ms BIGINT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS prediction_logs (
		id               BIGSERIAL PRIMARY KEY,
		request_id       TEXT,
		model_id         TEXT NOT NULL,
		features         JSONB NOT NULL,
		standardized     vector(%d) NOT NULL,
		predicted_budget DOUBLE PRECISION NOT NULL,
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, model.NumFeatures),
	`CREATE INDEX IF NOT EXISTS prediction_logs_model_id_idx ON prediction_logs (model_id, created_at DESC)`,
}

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute) // Shorter lifetime to avoid stale connections
	db.SetConnMaxIdleTime(2 * time.Minute) // Close idle connections sooner

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the tables this repository writes to
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// LogTrainingRun records one training run
func (r *PostgresRepository) LogTrainingRun(ctx context.Context, run *model.TrainingRun) error {
	query := `
		INSERT INTO training_runs (
			run_id, model_id, samples, seed, train_size, test_size,
			mae, rmse, r2, ranked_features, importances, hyperparameters,
			artifact_path, training_time_ms
		) VALUES (
			:run_id, :model_id, :samples, :seed, :train_size, :test_size,
			:mae, :rmse, :r2, :ranked_features, :importances, :hyperparameters,
			:artifact_path, :training_time_ms
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to log training run: %w", err)
	}
	return nil
}

// ListTrainingRuns returns training runs, newest first
func (r *PostgresRepository) ListTrainingRuns(ctx context.Context, limit, offset int) ([]model.TrainingRun, error) {
	query := `
		SELECT
			run_id, model_id, samples, seed, train_size, test_size,
			mae, rmse, r2, ranked_features, importances, hyperparameters,
			artifact_path, training_time_ms, created_at
		FROM training_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	runs := []model.TrainingRun{}
	if err := r.db.SelectContext(ctx, &runs, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	return runs, nil
}

// GetTrainingRun retrieves a single training run by its ID
func (r *PostgresRepository) GetTrainingRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	var run model.TrainingRun
	query := `
		SELECT
			run_id, model_id, samples, seed, train_size, test_size,
			mae, rmse, r2, ranked_features, importances, hyperparameters,
			artifact_path, training_time_ms, created_at
		FROM training_runs
		WHERE run_id = $1
	`
	err := r.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return &run, nil
}

// LogPrediction records one served prediction
func (r *PostgresRepository) LogPrediction(ctx context.Context, entry *model.PredictionLog) error {
	query := `
		INSERT INTO prediction_logs (request_id, model_id, features, standardized, predicted_budget, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.RequestID, entry.ModelID, entry.Features, entry.Standardized, entry.PredictedBudget, entry.ResponseTimeMs)
	if err != nil {
		return fmt.Errorf("failed to log prediction: %w", err)
	}
	return nil
}

// BatchLogPredictions records many predictions in one transaction
func (r *PostgresRepository) BatchLogPredictions(ctx context.Context, entries []model.PredictionLog) (int, []string) {
	success := 0
	var errors []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO prediction_logs (request_id, model_id, features, standardized, predicted_budget, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for i, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			entry.RequestID, entry.ModelID, entry.Features, entry.Standardized, entry.PredictedBudget, entry.ResponseTimeMs)
		if err != nil {
			errors = append(errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}

// RecentPredictions returns the latest logged predictions for a model
func (r *PostgresRepository) RecentPredictions(ctx context.Context, modelID string, limit int) ([]model.PredictionLog, error) {
	query := `
		SELECT id, request_id, model_id, features, standardized, predicted_budget, response_time_ms, created_at
		FROM prediction_logs
		WHERE model_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	logs := []model.PredictionLog{}
	if err := r.db.SelectContext(ctx, &logs, query, modelID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}
	return logs, nil
}

// NearestPredictions returns the model's logged predictions whose
// standardized vectors are closest (L2) to standardized.
func (r *PostgresRepository) NearestPredictions(ctx context.Context, modelID string, standardized []float32, limit int) ([]model.PredictionLog, error) {
	query := `
		SELECT id, request_id, model_id, features, standardized, predicted_budget, response_time_ms, created_at,
			standardized <-> $2 AS distance
		FROM prediction_logs
		WHERE model_id = $1
		ORDER BY standardized <-> $2
		LIMIT $3
	`
	logs := []model.PredictionLog{}
	if err := r.db.SelectContext(ctx, &logs, query, modelID, pgvector.NewVector(standardized), limit); err != nil {
		return nil, fmt.Errorf("failed to fetch nearest predictions: %w", err)
	}
	return logs, nil
}
