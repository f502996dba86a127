package service

import (
	"math/rand"

	"budgetpredictor/internal/model"
)

// Sampling ranges for synthetic projects. Continuous fields are uniform on
// [min, max); floors are uniform integers on [min, max].
const (
	minAreaSqft, maxAreaSqft     = 1000.0, 50000.0
	minFloors, maxFloors         = 1, 20
	minComplexity, maxComplexity = 1.0, 10.0
	minLaborCost, maxLaborCost   = 50.0, 200.0
	minPermits, maxPermits       = 5000.0, 50000.0
	minSitePrep, maxSitePrep     = 10000.0, 100000.0
	minUtilities, maxUtilities   = 5000.0, 30000.0
	minDuration, maxDuration     = 3.0, 24.0

	// noiseFraction scales the label's gaussian noise to its own magnitude.
	noiseFraction = 0.1
)

// FormulaBudget is the noise-free budget the generator labels records with.
func FormulaBudget(rec model.FeatureRecord) float64 {
	base := rec.ProjectAreaSqft * rec.LaborCostPerSqft
	complexityMult := 1 + (rec.ComplexityScore-5)*0.1
	locationMult := 1.0
	if rec.LocationUrban {
		locationMult = 1.2
	}
	return base*complexityMult*rec.MaterialsQuality.Multiplier()*locationMult +
		rec.PermitsAndFees + rec.SitePreparationCost + rec.UtilitiesCost
}

// GenerateRecords draws n labeled synthetic projects. The output depends
// only on (n, seed).
func GenerateRecords(n int, seed int64) []model.LabeledRecord {
	if n <= 0 {
		return []model.LabeledRecord{}
	}
	rnd := rand.New(rand.NewSource(seed))
	out := make([]model.LabeledRecord, n)
	for i := range out {
		rec := model.FeatureRecord{
			ProjectAreaSqft:       uniform(rnd, minAreaSqft, maxAreaSqft),
			NumFloors:             minFloors + rnd.Intn(maxFloors-minFloors+1),
			ConstructionType:      model.ConstructionTypes[rnd.Intn(len(model.ConstructionTypes))],
			LocationUrban:         rnd.Intn(2) == 1,
			ComplexityScore:       uniform(rnd, minComplexity, maxComplexity),
			MaterialsQuality:      model.MaterialsQualities[rnd.Intn(len(model.MaterialsQualities))],
			LaborCostPerSqft:      uniform(rnd, minLaborCost, maxLaborCost),
			PermitsAndFees:        uniform(rnd, minPermits, maxPermits),
			SitePreparationCost:   uniform(rnd, minSitePrep, maxSitePrep),
			UtilitiesCost:         uniform(rnd, minUtilities, maxUtilities),
			ProjectDurationMonths: uniform(rnd, minDuration, maxDuration),
		}
		label := FormulaBudget(rec)
		label += rnd.NormFloat64() * noiseFraction * label
		out[i] = model.LabeledRecord{Record: rec, Label: label}
	}
	return out
}

// Generate draws n synthetic projects and returns them encoded.
func Generate(n int, seed int64) []model.TrainingExample {
	records := GenerateRecords(n, seed)
	out := make([]model.TrainingExample, len(records))
	for i, lr := range records {
		// generated records are always within the schema's domains
		x, _ := Encode(lr.Record)
		out[i] = model.TrainingExample{Features: x, Label: lr.Label}
	}
	return out
}

// TrainTestSplit shuffles examples with seed and puts the first
// (1-testRatio) share into train, the rest into test.
func TrainTestSplit[T any](examples []T, testRatio float64, seed int64) (train, test []T) {
	n := len(examples)
	idx := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n)*testRatio + 0.5)
	if nTest > n {
		nTest = n
	}
	nTrain := n - nTest

	train = make([]T, nTrain)
	test = make([]T, nTest)
	for i := 0; i < nTrain; i++ {
		train[i] = examples[idx[i]]
	}
	for i := nTrain; i < n; i++ {
		test[i-nTrain] = examples[idx[i]]
	}
	return train, test
}

func uniform(rnd *rand.Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}
