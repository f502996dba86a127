package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/repository"
)

// memoryRuns is an in-memory RunStore.
type memoryRuns struct {
	mu          sync.Mutex
	runs        []model.TrainingRun
	predictions []model.PredictionLog
	batches     int
	err         error
}

func (m *memoryRuns) LogTrainingRun(ctx context.Context, run *model.TrainingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memoryRuns) ListTrainingRuns(ctx context.Context, limit, offset int) ([]model.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.runs) {
		return []model.TrainingRun{}, nil
	}
	end := min(offset+limit, len(m.runs))
	return append([]model.TrainingRun{}, m.runs[offset:end]...), nil
}

func (m *memoryRuns) GetTrainingRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].RunID == runID {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

func (m *memoryRuns) LogPrediction(ctx context.Context, entry *model.PredictionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, *entry)
	return nil
}

func (m *memoryRuns) BatchLogPredictions(ctx context.Context, entries []model.PredictionLog) (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.predictions = append(m.predictions, entries...)
	return len(entries), nil
}

func (m *memoryRuns) RecentPredictions(ctx context.Context, modelID string, limit int) ([]model.PredictionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PredictionLog{}
	for i := len(m.predictions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.predictions[i].ModelID == modelID {
			out = append(out, m.predictions[i])
		}
	}
	return out, nil
}

func (m *memoryRuns) NearestPredictions(ctx context.Context, modelID string, standardized []float32, limit int) ([]model.PredictionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PredictionLog{}
	for _, p := range m.predictions {
		if p.ModelID != modelID {
			continue
		}
		sum := 0.0
		for j, v := range p.Standardized.Slice() {
			d := float64(v - standardized[j])
			sum += d * d
		}
		dist := math.Sqrt(sum)
		p.Distance = &dist
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func quickOptions(path string) TrainOptions {
	p := model.DefaultHyperparameters()
	p.NumTrees = 8
	return TrainOptions{
		Samples:      300,
		Seed:         42,
		TestRatio:    0.2,
		Params:       p,
		ArtifactPath: path,
		Install:      true,
	}
}

func newTestService(t *testing.T, runs RunStore) (*BudgetService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "construction_budget_model.gob")
	return NewBudgetService(NewPredictor(), repository.NewArtifactStore(), runs, path), path
}

func TestBudgetService_Train(t *testing.T) {
	runs := &memoryRuns{}
	svc, path := newTestService(t, runs)

	report, err := svc.Train(context.Background(), quickOptions(path))
	require.NoError(t, err)

	assert.Equal(t, 300, report.Samples)
	assert.Equal(t, 240, report.TrainSize)
	assert.Equal(t, 60, report.TestSize)
	assert.Equal(t, path, report.ArtifactPath)
	assert.Len(t, report.Importance, model.NumFeatures)
	assert.Greater(t, report.SamplePrediction, 0.0)
	assert.Equal(t, 60, report.Metrics.N)
	assert.True(t, svc.Ready())

	// saved and installed states agree
	saved, err := repository.NewArtifactStore().Load(path)
	require.NoError(t, err)
	assert.Equal(t, report.ModelID, saved.ID)
	require.NotNil(t, saved.Holdout)
	assert.Equal(t, report.Metrics, *saved.Holdout)

	require.Len(t, runs.runs, 1)
	run := runs.runs[0]
	assert.Equal(t, report.RunID, run.RunID)
	assert.Equal(t, report.ModelID, run.ModelID)
	assert.Equal(t, report.Metrics.R2, run.R2)
	assert.Equal(t, report.Importance[0].Feature, run.RankedFeatures[0])
	assert.Len(t, run.Importances, model.NumFeatures)
	assert.Equal(t, 8, run.Hyperparameters["num_trees"])
	require.NotNil(t, run.ArtifactPath)
	assert.Equal(t, path, *run.ArtifactPath)

	got, err := svc.GetTrainingRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got.RunID)

	list, err := svc.ListTrainingRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBudgetService_TrainRecordFailureIsNotFatal(t *testing.T) {
	runs := &memoryRuns{err: errors.New("database is down")}
	svc, _ := newTestService(t, runs)

	opts := quickOptions("")
	_, err := svc.Train(context.Background(), opts)
	assert.NoError(t, err)
}

func TestBudgetService_TrainErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name   string
		mutate func(o *TrainOptions)
	}{
		{"no samples", func(o *TrainOptions) { o.Samples = 0 }},
		{"empty test split", func(o *TrainOptions) { o.Samples = 2 }},
		{"single holdout example", func(o *TrainOptions) { o.Samples = 5 }},
		{"no trees", func(o *TrainOptions) { o.Params.NumTrees = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := quickOptions("")
			tt.mutate(&opts)
			_, err := svc.Train(context.Background(), opts)
			assert.ErrorIs(t, err, model.ErrTraining)
		})
	}
	assert.False(t, svc.Ready())
}

func TestBudgetService_TrainCanceled(t *testing.T) {
	svc, _ := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Train(ctx, quickOptions(""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, svc.Ready())
}

func TestBudgetService_PredictLogs(t *testing.T) {
	runs := &memoryRuns{}
	svc, _ := newTestService(t, runs)
	report, err := svc.Train(context.Background(), quickOptions(""))
	require.NoError(t, err)

	resp, err := svc.Predict(context.Background(), sampleRaw(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, report.ModelID, resp.ModelID)
	assert.Equal(t, report.SamplePrediction, resp.PredictedBudget)

	batch, err := svc.PredictBatch(context.Background(), []model.RawRecord{sampleRaw(), sampleRaw()}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count)

	svc.Wait()
	runs.mu.Lock()
	defer runs.mu.Unlock()
	require.Len(t, runs.predictions, 3)
	assert.Equal(t, 1, runs.batches)

	first := runs.predictions[0]
	require.NotNil(t, first.RequestID)
	assert.Equal(t, "req-1", *first.RequestID)
	assert.Equal(t, report.ModelID, first.ModelID)
	assert.Nil(t, runs.predictions[1].RequestID)

	// logged vectors are standardized with the serving model's scaler
	state, err := svc.predictor.State()
	require.NoError(t, err)
	x, err := EncodeRaw(sampleRaw())
	require.NoError(t, err)
	z, err := state.Scaler.Transform(x, nil)
	require.NoError(t, err)
	got := first.Standardized.Slice()
	require.Len(t, got, model.NumFeatures)
	for j := range z {
		assert.InDelta(t, z[j], float64(got[j]), 1e-4, model.FeatureNames()[j])
	}
}

func TestBudgetService_RecentAndSimilarPredictions(t *testing.T) {
	runs := &memoryRuns{}
	svc, _ := newTestService(t, runs)
	report, err := svc.Train(context.Background(), quickOptions(""))
	require.NoError(t, err)

	// in raw units the construction type change is the smallest difference;
	// standardized, the area change is
	small := sampleRaw()
	small[model.FieldProjectAreaSqft] = 4000.0
	residential := sampleRaw()
	residential[model.FieldConstructionType] = "residential"
	costly := sampleRaw()
	costly[model.FieldPermitsAndFees] = 45000.0

	_, err = svc.PredictBatch(context.Background(), []model.RawRecord{small, costly, residential}, "")
	require.NoError(t, err)
	svc.Wait()

	recent, err := svc.RecentPredictions(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, report.ModelID, recent.ModelID)
	assert.Equal(t, 2, recent.Count)

	similar, err := svc.SimilarPredictions(context.Background(), sampleRaw(), 3)
	require.NoError(t, err)
	assert.Equal(t, report.ModelID, similar.ModelID)
	assert.Equal(t, report.SamplePrediction, similar.PredictedBudget)
	require.Equal(t, 3, similar.Count)
	assert.Equal(t, 4000.0, similar.Similar[0].Features[model.FieldProjectAreaSqft])
	assert.Equal(t, "residential", similar.Similar[1].Features[model.FieldConstructionType])
	assert.Equal(t, 45000.0, similar.Similar[2].Features[model.FieldPermitsAndFees])
	for i := 1; i < len(similar.Similar); i++ {
		assert.LessOrEqual(t, *similar.Similar[i-1].Distance, *similar.Similar[i].Distance)
	}

	// the lookup itself is not logged
	svc.Wait()
	runs.mu.Lock()
	assert.Len(t, runs.predictions, 3)
	runs.mu.Unlock()

	_, err = svc.SimilarPredictions(context.Background(), model.RawRecord{}, 3)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBudgetService_PredictionLogsUnavailable(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.RecentPredictions(context.Background(), 5)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.SimilarPredictions(context.Background(), sampleRaw(), 5)
	assert.ErrorIs(t, err, model.ErrNotFound)

	svc, _ = newTestService(t, &memoryRuns{})
	_, err = svc.RecentPredictions(context.Background(), 5)
	assert.ErrorIs(t, err, model.ErrNotTrained)
}

func TestBudgetService_NotTrained(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Predict(context.Background(), sampleRaw(), "")
	assert.ErrorIs(t, err, model.ErrNotTrained)
	_, err = svc.ModelInfo()
	assert.ErrorIs(t, err, model.ErrNotTrained)
	_, err = svc.Importance()
	assert.ErrorIs(t, err, model.ErrNotTrained)

	_, err = svc.Reload()
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, svc.Ready())
}

func TestBudgetService_ReloadAndInfo(t *testing.T) {
	svc, path := newTestService(t, nil)

	opts := quickOptions(path)
	opts.Install = false
	report, err := svc.Train(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, svc.Ready())

	info, err := svc.Reload()
	require.NoError(t, err)
	assert.Equal(t, report.ModelID, info.ModelID)
	assert.Equal(t, 8, info.NumTrees)
	assert.Greater(t, info.MaxTreeDepth, 1)
	assert.Equal(t, model.FeatureNames(), info.FeatureNames)

	imp, err := svc.Importance()
	require.NoError(t, err)
	assert.Equal(t, report.Importance, imp.Importance)
}

func TestBudgetService_RunsDisabled(t *testing.T) {
	svc, _ := newTestService(t, nil)
	assert.False(t, svc.RunsEnabled())

	_, err := svc.ListTrainingRuns(context.Background(), 10, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	svc, _ = newTestService(t, &memoryRuns{})
	_, err = svc.GetTrainingRun(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
