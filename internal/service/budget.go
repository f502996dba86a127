package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"budgetpredictor/internal/model"
)

// ArtifactStore persists fitted model states.
type ArtifactStore interface {
	ArtifactLoader
	Save(state *model.ModelState, path string) error
}

// RunStore records training runs and served predictions.
type RunStore interface {
	LogTrainingRun(ctx context.Context, run *model.TrainingRun) error
	ListTrainingRuns(ctx context.Context, limit, offset int) ([]model.TrainingRun, error)
	GetTrainingRun(ctx context.Context, runID string) (*model.TrainingRun, error)
	LogPrediction(ctx context.Context, entry *model.PredictionLog) error
	BatchLogPredictions(ctx context.Context, entries []model.PredictionLog) (int, []string)
	RecentPredictions(ctx context.Context, modelID string, limit int) ([]model.PredictionLog, error)
	NearestPredictions(ctx context.Context, modelID string, standardized []float32, limit int) ([]model.PredictionLog, error)
}

// SampleProject is the reference project every training run scores.
var SampleProject = model.FeatureRecord{
	ProjectAreaSqft:       5000,
	NumFloors:             3,
	ConstructionType:      model.Commercial,
	LocationUrban:         true,
	ComplexityScore:       7.5,
	MaterialsQuality:      model.HighQuality,
	LaborCostPerSqft:      120,
	PermitsAndFees:        15000,
	SitePreparationCost:   25000,
	UtilitiesCost:         12000,
	ProjectDurationMonths: 12,
}

// minHoldout is the smallest holdout set R² is defined on.
const minHoldout = 2

// TrainOptions configure one training run.
type TrainOptions struct {
	Samples      int
	Seed         int64
	TestRatio    float64
	Params       model.Hyperparameters
	ArtifactPath string // empty skips saving
	Install      bool   // swap the new model into the predictor
}

// BudgetService ties the predictor to model storage and the run log
type BudgetService struct {
	predictor *Predictor
	artifacts ArtifactStore
	runs      RunStore
	modelPath string

	pending sync.WaitGroup
}

// NewBudgetService creates a new budget service. runs may be nil, in which
// case nothing is recorded.
func NewBudgetService(predictor *Predictor, artifacts ArtifactStore, runs RunStore, modelPath string) *BudgetService {
	return &BudgetService{
		predictor: predictor,
		artifacts: artifacts,
		runs:      runs,
		modelPath: modelPath,
	}
}

// Ready reports whether a model is being served.
func (s *BudgetService) Ready() bool {
	return s.predictor.Ready()
}

// RunsEnabled reports whether training runs are recorded.
func (s *BudgetService) RunsEnabled() bool {
	return s.runs != nil
}

// Predict scores one record
func (s *BudgetService) Predict(ctx context.Context, raw model.RawRecord, requestID string) (*model.PredictResponse, error) {
	startTime := time.Now()

	scored, err := s.predictor.Score([]model.RawRecord{raw})
	if err != nil {
		return nil, err
	}
	took := time.Since(startTime).Milliseconds()

	s.logPredictions([]model.RawRecord{raw}, scored, requestID, took)

	return &model.PredictResponse{
		PredictedBudget: scored.Predictions[0],
		ModelID:         scored.State.ID,
		Took:            took,
	}, nil
}

// PredictBatch scores records in order
func (s *BudgetService) PredictBatch(ctx context.Context, raws []model.RawRecord, requestID string) (*model.BatchPredictResponse, error) {
	startTime := time.Now()

	scored, err := s.predictor.Score(raws)
	if err != nil {
		return nil, err
	}
	took := time.Since(startTime).Milliseconds()

	s.logPredictions(raws, scored, requestID, took)

	return &model.BatchPredictResponse{
		Predictions: scored.Predictions,
		Count:       len(scored.Predictions),
		ModelID:     scored.State.ID,
		Took:        took,
	}, nil
}

// logPredictions records predictions without blocking the caller.
func (s *BudgetService) logPredictions(raws []model.RawRecord, scored *Scored, requestID string, took int64) {
	if s.runs == nil || len(raws) == 0 {
		return
	}

	var reqID *string
	if requestID != "" {
		reqID = &requestID
	}
	entries := make([]model.PredictionLog, len(raws))
	for i, raw := range raws {
		z, err := standardize(scored.State, scored.Vectors[i])
		if err != nil {
			slog.Warn("failed to standardize prediction for logging", "error", err, "request_id", requestID)
			return
		}
		entries[i] = model.PredictionLog{
			RequestID:       reqID,
			ModelID:         scored.State.ID,
			Features:        model.JSONMap(raw),
			Standardized:    pgvector.NewVector(z),
			PredictedBudget: scored.Predictions[i],
			ResponseTimeMs:  took,
		}
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if len(entries) == 1 {
			if err := s.runs.LogPrediction(ctx, &entries[0]); err != nil {
				slog.Warn("failed to log prediction", "error", err, "request_id", requestID)
			}
			return
		}
		if _, errs := s.runs.BatchLogPredictions(ctx, entries); len(errs) > 0 {
			slog.Warn("failed to log some predictions", "errors", len(errs), "first", errs[0], "request_id", requestID)
		}
	}()
}

// Wait blocks until pending prediction logs have been written.
func (s *BudgetService) Wait() {
	s.pending.Wait()
}

// RecentPredictions returns the latest logged predictions of the served model.
func (s *BudgetService) RecentPredictions(ctx context.Context, limit int) (*model.PredictionLogListResponse, error) {
	if s.runs == nil {
		return nil, model.Errorf(model.ErrNotFound, "predictions are not recorded")
	}
	state, err := s.predictor.State()
	if err != nil {
		return nil, err
	}

	logs, err := s.runs.RecentPredictions(ctx, state.ID, limit)
	if err != nil {
		return nil, err
	}
	return &model.PredictionLogListResponse{ModelID: state.ID, Predictions: logs, Count: len(logs)}, nil
}

// SimilarPredictions scores raw and returns the served model's logged
// predictions nearest to it in standardized feature space. The new estimate
// itself is not logged.
func (s *BudgetService) SimilarPredictions(ctx context.Context, raw model.RawRecord, limit int) (*model.SimilarPredictionsResponse, error) {
	if s.runs == nil {
		return nil, model.Errorf(model.ErrNotFound, "predictions are not recorded")
	}
	scored, err := s.predictor.Score([]model.RawRecord{raw})
	if err != nil {
		return nil, err
	}
	z, err := standardize(scored.State, scored.Vectors[0])
	if err != nil {
		return nil, err
	}

	logs, err := s.runs.NearestPredictions(ctx, scored.State.ID, z, limit)
	if err != nil {
		return nil, err
	}
	return &model.SimilarPredictionsResponse{
		ModelID:         scored.State.ID,
		PredictedBudget: scored.Predictions[0],
		Similar:         logs,
		Count:           len(logs),
	}, nil
}

// ModelInfo describes the model being served
func (s *BudgetService) ModelInfo() (*model.ModelInfoResponse, error) {
	state, err := s.predictor.State()
	if err != nil {
		return nil, err
	}
	depth := 0
	for i := range state.Forest.Trees {
		depth = max(depth, state.Forest.Trees[i].Depth())
	}
	return &model.ModelInfoResponse{
		ModelID:      state.ID,
		TrainedAt:    state.TrainedAt,
		FeatureNames: state.FeatureNames,
		NumTrees:     len(state.Forest.Trees),
		MaxTreeDepth: depth,
		Params:       state.Params,
		Holdout:      state.Holdout,
	}, nil
}

// Importance ranks the served model's features
func (s *BudgetService) Importance() (*model.ImportanceResponse, error) {
	state, err := s.predictor.State()
	if err != nil {
		return nil, err
	}
	ranked, err := FeatureImportance(state)
	if err != nil {
		return nil, err
	}
	return &model.ImportanceResponse{ModelID: state.ID, Importance: ranked}, nil
}

// Reload loads the configured artifact and swaps it in. On failure the
// current model keeps serving.
func (s *BudgetService) Reload() (*model.ModelInfoResponse, error) {
	if _, err := s.predictor.Reload(s.artifacts, s.modelPath); err != nil {
		slog.Error("model reload failed", "path", s.modelPath, "error", err)
		return nil, err
	}
	return s.ModelInfo()
}

// Train generates data, fits and evaluates a model, then saves, installs
// and records it as opts ask.
func (s *BudgetService) Train(ctx context.Context, opts TrainOptions) (*model.TrainingReport, error) {
	startTime := time.Now()

	if opts.Samples <= 0 {
		return nil, model.Errorf(model.ErrTraining, "sample count must be positive, got %d", opts.Samples)
	}

	examples := Generate(opts.Samples, opts.Seed)
	train, test := TrainTestSplit(examples, opts.TestRatio, opts.Seed)
	if len(train) == 0 || len(test) < minHoldout {
		return nil, model.Errorf(model.ErrTraining,
			"%d samples at test ratio %v leave %d training and %d holdout examples, need at least 1 and %d",
			opts.Samples, opts.TestRatio, len(train), len(test), minHoldout)
	}
	slog.Info("training started",
		"samples", opts.Samples, "seed", opts.Seed, "train", len(train), "test", len(test), "trees", opts.Params.NumTrees)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := NewTrainer(opts.Params).Fit(train)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics, err := Evaluate(state, test)
	if err != nil {
		return nil, err
	}
	state.Holdout = &metrics

	ranked, err := FeatureImportance(state)
	if err != nil {
		return nil, err
	}
	sample, err := PredictRecords(state, []model.FeatureRecord{SampleProject})
	if err != nil {
		return nil, err
	}

	if opts.ArtifactPath != "" {
		if err := s.artifacts.Save(state, opts.ArtifactPath); err != nil {
			return nil, err
		}
		slog.Info("model saved", "model_id", state.ID, "path", opts.ArtifactPath)
	}
	if opts.Install {
		if _, err := s.predictor.Swap(state); err != nil {
			return nil, err
		}
		slog.Info("model installed", "model_id", state.ID)
	}

	report := &model.TrainingReport{
		RunID:            uuid.NewString(),
		ModelID:          state.ID,
		Samples:          opts.Samples,
		Seed:             opts.Seed,
		TrainSize:        len(train),
		TestSize:         len(test),
		Metrics:          metrics,
		Importance:       ranked,
		ArtifactPath:     opts.ArtifactPath,
		SamplePrediction: sample[0],
		Took:             time.Since(startTime).Milliseconds(),
	}
	slog.Info("training finished",
		"model_id", state.ID, "mae", metrics.MAE, "rmse", metrics.RMSE, "r2", metrics.R2, "took_ms", report.Took)

	if s.runs != nil {
		if err := s.runs.LogTrainingRun(ctx, newTrainingRun(report, state.Params)); err != nil {
			slog.Warn("failed to record training run", "run_id", report.RunID, "error", err)
		}
	}
	return report, nil
}

// ListTrainingRuns returns recorded training runs, newest first
func (s *BudgetService) ListTrainingRuns(ctx context.Context, limit, offset int) ([]model.TrainingRun, error) {
	if s.runs == nil {
		return nil, model.Errorf(model.ErrNotFound, "training runs are not recorded")
	}
	return s.runs.ListTrainingRuns(ctx, limit, offset)
}

// GetTrainingRun returns one recorded run or ErrNotFound
func (s *BudgetService) GetTrainingRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	if s.runs == nil {
		return nil, model.Errorf(model.ErrNotFound, "training runs are not recorded")
	}
	run, err := s.runs.GetTrainingRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, model.Errorf(model.ErrNotFound, "training run %s", runID)
	}
	return run, nil
}

func newTrainingRun(report *model.TrainingReport, params model.Hyperparameters) *model.TrainingRun {
	ranked := make([]string, len(report.Importance))
	importances := model.JSONMap{}
	for i, fi := range report.Importance {
		ranked[i] = fi.Feature
		importances[fi.Feature] = fi.Importance
	}

	run := &model.TrainingRun{
		RunID:          report.RunID,
		ModelID:        report.ModelID,
		Samples:        report.Samples,
		Seed:           report.Seed,
		TrainSize:      report.TrainSize,
		TestSize:       report.TestSize,
		MAE:            report.Metrics.MAE,
		RMSE:           report.Metrics.RMSE,
		R2:             report.Metrics.R2,
		RankedFeatures: ranked,
		Importances:    importances,
		Hyperparameters: model.JSONMap{
			"num_trees":         params.NumTrees,
			"max_depth":         params.MaxDepth,
			"min_samples_split": params.MinSamplesSplit,
			"min_samples_leaf":  params.MinSamplesLeaf,
			"max_features":      params.MaxFeatures,
			"seed":              params.Seed,
		},
		TrainingTimeMs: report.Took,
	}
	if report.ArtifactPath != "" {
		path := report.ArtifactPath
		run.ArtifactPath = &path
	}
	return run
}

// standardize applies state's scaler to an encoded vector.
func standardize(state *model.ModelState, x []float64) ([]float32, error) {
	z, err := state.Scaler.Transform(x, nil)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(z))
	for i, v := range z {
		out[i] = float32(v)
	}
	return out, nil
}
