package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"budgetpredictor/internal/model"
)

func TestFormulaBudget_Sample(t *testing.T) {
	// 5000*120 * 1.25 * 1.3 * 1.2 + 15000 + 25000 + 12000
	assert.InDelta(t, 1222000.0, FormulaBudget(SampleProject), 1e-6)

	rural := SampleProject
	rural.LocationUrban = false
	assert.InDelta(t, 975000.0+52000.0, FormulaBudget(rural), 1e-6)
}

func TestGenerateRecords_Deterministic(t *testing.T) {
	a := GenerateRecords(50, 42)
	b := GenerateRecords(50, 42)
	c := GenerateRecords(50, 43)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Empty(t, GenerateRecords(0, 42))
	assert.Empty(t, GenerateRecords(-3, 42))
}

func TestGenerateRecords_Ranges(t *testing.T) {
	seenTypes := map[model.ConstructionType]bool{}
	seenQuality := map[model.MaterialsQuality]bool{}

	for _, lr := range GenerateRecords(2000, 1) {
		r := lr.Record
		require.NoError(t, ValidateRecord(r))
		assert.True(t, r.ProjectAreaSqft >= 1000 && r.ProjectAreaSqft < 50000)
		assert.True(t, r.NumFloors >= 1 && r.NumFloors <= 20)
		assert.True(t, r.ComplexityScore >= 1 && r.ComplexityScore < 10)
		assert.True(t, r.LaborCostPerSqft >= 50 && r.LaborCostPerSqft < 200)
		assert.True(t, r.PermitsAndFees >= 5000 && r.PermitsAndFees < 50000)
		assert.True(t, r.SitePreparationCost >= 10000 && r.SitePreparationCost < 100000)
		assert.True(t, r.UtilitiesCost >= 5000 && r.UtilitiesCost < 30000)
		assert.True(t, r.ProjectDurationMonths >= 3 && r.ProjectDurationMonths < 24)
		seenTypes[r.ConstructionType] = true
		seenQuality[r.MaterialsQuality] = true
	}
	assert.Len(t, seenTypes, 3)
	assert.Len(t, seenQuality, 3)
}

func TestGenerateRecords_NoiseScale(t *testing.T) {
	records := GenerateRecords(5000, 42)
	rel := make([]float64, len(records))
	for i, lr := range records {
		rel[i] = lr.Label/FormulaBudget(lr.Record) - 1
	}
	mean, std := stat.MeanStdDev(rel, nil)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 0.1, std, 0.01)
}

func TestGenerate_Encoded(t *testing.T) {
	examples := Generate(20, 42)
	records := GenerateRecords(20, 42)
	require.Len(t, examples, 20)

	for i, ex := range examples {
		want, err := Encode(records[i].Record)
		require.NoError(t, err)
		assert.Equal(t, want, ex.Features)
		assert.Equal(t, records[i].Label, ex.Label)
	}
}

func TestTrainTestSplit(t *testing.T) {
	items := make([]int, 2000)
	for i := range items {
		items[i] = i
	}

	train, test := TrainTestSplit(items, 0.2, 42)
	assert.Len(t, train, 1600)
	assert.Len(t, test, 400)

	seen := make(map[int]bool, len(items))
	for _, v := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, len(items))

	train2, test2 := TrainTestSplit(items, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	// rounding follows the nearest whole row
	tr, te := TrainTestSplit(items[:7], 0.2, 1)
	assert.Len(t, tr, 6)
	assert.Len(t, te, 1)

	tr, te = TrainTestSplit([]int{}, 0.2, 1)
	assert.Empty(t, tr)
	assert.Empty(t, te)
}

func TestGenerateRecords_FiniteLabels(t *testing.T) {
	for _, lr := range GenerateRecords(100, 9) {
		assert.False(t, math.IsNaN(lr.Label) || math.IsInf(lr.Label, 0))
		assert.Greater(t, lr.Label, 0.0)
	}
}
