package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpredictor/internal/model"
)

func sampleRaw() model.RawRecord {
	return model.RawRecord{
		"project_area_sqft":       5000.0,
		"num_floors":              3.0,
		"construction_type":       "commercial",
		"location_urban":          1.0,
		"complexity_score":        7.5,
		"materials_quality":       "high",
		"labor_cost_per_sqft":     120.0,
		"permits_and_fees":        15000.0,
		"site_preparation_cost":   25000.0,
		"utilities_cost":          12000.0,
		"project_duration_months": 12.0,
	}
}

func TestEncodeRaw_Sample(t *testing.T) {
	x, err := EncodeRaw(sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, []float64{5000, 3, 1, 1, 7.5, 2, 120, 15000, 25000, 12000, 12}, x)

	again, err := EncodeRaw(sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, x, again)
}

func TestEncodeRaw_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r model.RawRecord)
		index  int
		want   float64
	}{
		{"int values", func(r model.RawRecord) { r["num_floors"] = 4 }, 1, 4},
		{"json number", func(r model.RawRecord) { r["project_area_sqft"] = json.Number("1234.5") }, 0, 1234.5},
		{"urban bool", func(r model.RawRecord) { r["location_urban"] = false }, 3, 0},
		{"mixed case category", func(r model.RawRecord) { r["construction_type"] = " Industrial" }, 2, 2},
		{"zero fees", func(r model.RawRecord) { r["permits_and_fees"] = 0 }, 7, 0},
		{"extra field ignored", func(r model.RawRecord) { r["owner"] = "acme" }, 0, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleRaw()
			tt.mutate(raw)
			x, err := EncodeRaw(raw)
			require.NoError(t, err)
			require.Len(t, x, model.NumFeatures)
			assert.Equal(t, tt.want, x[tt.index])
		})
	}
}

func TestEncodeRaw_MissingField(t *testing.T) {
	for _, name := range model.FeatureNames() {
		t.Run(name, func(t *testing.T) {
			raw := sampleRaw()
			delete(raw, name)

			_, err := EncodeRaw(raw)
			require.ErrorIs(t, err, model.ErrValidation)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, name, ve.Field)
		})
	}
}

func TestEncodeRaw_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"unknown construction type", "construction_type", "commercial_lite"},
		{"unknown quality", "materials_quality", "premium"},
		{"numeric category", "materials_quality", 2},
		{"string number", "project_area_sqft", "5000"},
		{"null", "labor_cost_per_sqft", nil},
		{"urban out of range", "location_urban", 2},
		{"urban string", "location_urban", "yes"},
		{"fractional floors", "num_floors", 2.5},
		{"zero floors", "num_floors", 0},
		{"complexity too high", "complexity_score", 11},
		{"complexity too low", "complexity_score", 0.5},
		{"negative area", "project_area_sqft", -10},
		{"zero duration", "project_duration_months", 0},
		{"negative utilities", "utilities_cost", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleRaw()
			raw[tt.field] = tt.value

			_, err := EncodeRaw(raw)
			require.ErrorIs(t, err, model.ErrValidation)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEncodeRaw_Nil(t *testing.T) {
	_, err := EncodeRaw(nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestEncodeRaw_FloorsOutOfIntRange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  string
	}{
		{"huge", 1e20, "too large"},
		{"just above int32", float64(math.MaxInt32) + 1, "too large"},
		{"huge negative", -1e20, "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleRaw()
			raw[model.FieldNumFloors] = tt.value

			_, err := EncodeRaw(raw)
			require.ErrorIs(t, err, model.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "-9223372036854775808")
		})
	}
}

func TestParseRecord_RoundTrip(t *testing.T) {
	rec, err := ParseRecord(sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, SampleProject, rec)

	back, err := ParseRecord(rec.Raw())
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestEncode_InvalidTypedRecord(t *testing.T) {
	rec := SampleProject
	rec.MaterialsQuality = model.MaterialsQuality(5)
	_, err := Encode(rec)
	assert.ErrorIs(t, err, model.ErrValidation)
}
