package service

import (
	"math"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/utils"
)

// ParseRecord validates an untyped field -> value mapping and converts it
// into a FeatureRecord. Fields outside the schema are ignored.
func ParseRecord(raw model.RawRecord) (model.FeatureRecord, error) {
	var rec model.FeatureRecord
	if raw == nil {
		return rec, model.Invalidf("", "record is empty")
	}
	for _, name := range model.FeatureNames() {
		if _, ok := raw[name]; !ok {
			return rec, model.Invalidf(name, "missing required field")
		}
	}

	var err error
	if rec.ProjectAreaSqft, err = numberField(raw, model.FieldProjectAreaSqft); err != nil {
		return rec, err
	}
	floors, err := numberField(raw, model.FieldNumFloors)
	if err != nil {
		return rec, err
	}
	if floors != math.Trunc(floors) {
		return rec, model.Invalidf(model.FieldNumFloors, "must be a whole number, got %v", floors)
	}
	if floors < 1 {
		return rec, model.Invalidf(model.FieldNumFloors, "must be at least 1, got %v", floors)
	}
	if floors > math.MaxInt32 {
		return rec, model.Invalidf(model.FieldNumFloors, "too large, got %v", floors)
	}
	rec.NumFloors = int(floors)

	ct, err := stringField(raw, model.FieldConstructionType)
	if err != nil {
		return rec, err
	}
	if rec.ConstructionType, err = model.ParseConstructionType(ct); err != nil {
		return rec, err
	}

	if rec.LocationUrban, err = flagField(raw, model.FieldLocationUrban); err != nil {
		return rec, err
	}
	if rec.ComplexityScore, err = numberField(raw, model.FieldComplexityScore); err != nil {
		return rec, err
	}

	mq, err := stringField(raw, model.FieldMaterialsQuality)
	if err != nil {
		return rec, err
	}
	if rec.MaterialsQuality, err = model.ParseMaterialsQuality(mq); err != nil {
		return rec, err
	}

	if rec.LaborCostPerSqft, err = numberField(raw, model.FieldLaborCostPerSqft); err != nil {
		return rec, err
	}
	if rec.PermitsAndFees, err = numberField(raw, model.FieldPermitsAndFees); err != nil {
		return rec, err
	}
	if rec.SitePreparationCost, err = numberField(raw, model.FieldSitePreparationCost); err != nil {
		return rec, err
	}
	if rec.UtilitiesCost, err = numberField(raw, model.FieldUtilitiesCost); err != nil {
		return rec, err
	}
	if rec.ProjectDurationMonths, err = numberField(raw, model.FieldProjectDurationMonths); err != nil {
		return rec, err
	}

	if err := ValidateRecord(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ValidateRecord checks every field of rec against its domain.
func ValidateRecord(rec model.FeatureRecord) error {
	positive := []struct {
		field string
		v     float64
	}{
		{model.FieldProjectAreaSqft, rec.ProjectAreaSqft},
		{model.FieldLaborCostPerSqft, rec.LaborCostPerSqft},
		{model.FieldProjectDurationMonths, rec.ProjectDurationMonths},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return model.Invalidf(p.field, "must be a positive number, got %v", p.v)
		}
	}

	nonNegative := []struct {
		field string
		v     float64
	}{
		{model.FieldPermitsAndFees, rec.PermitsAndFees},
		{model.FieldSitePreparationCost, rec.SitePreparationCost},
		{model.FieldUtilitiesCost, rec.UtilitiesCost},
	}
	for _, p := range nonNegative {
		if !(p.v >= 0) || math.IsInf(p.v, 0) {
			return model.Invalidf(p.field, "must be a non-negative number, got %v", p.v)
		}
	}

	if rec.NumFloors < 1 {
		return model.Invalidf(model.FieldNumFloors, "must be at least 1, got %d", rec.NumFloors)
	}
	if !(rec.ComplexityScore >= 1 && rec.ComplexityScore <= 10) {
		return model.Invalidf(model.FieldComplexityScore, "must be within [1, 10], got %v", rec.ComplexityScore)
	}
	if _, err := rec.ConstructionType.Rank(); err != nil {
		return err
	}
	if _, err := rec.MaterialsQuality.Rank(); err != nil {
		return err
	}
	return nil
}

// Encode maps a record onto the schema-ordered numeric vector.
func Encode(rec model.FeatureRecord) ([]float64, error) {
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}
	ct, _ := rec.ConstructionType.Rank()
	mq, _ := rec.MaterialsQuality.Rank()
	urban := 0.0
	if rec.LocationUrban {
		urban = 1
	}
	return []float64{
		rec.ProjectAreaSqft,
		float64(rec.NumFloors),
		ct,
		urban,
		rec.ComplexityScore,
		mq,
		rec.LaborCostPerSqft,
		rec.PermitsAndFees,
		rec.SitePreparationCost,
		rec.UtilitiesCost,
		rec.ProjectDurationMonths,
	}, nil
}

// EncodeRaw validates and encodes an untyped record.
func EncodeRaw(raw model.RawRecord) ([]float64, error) {
	rec, err := ParseRecord(raw)
	if err != nil {
		return nil, err
	}
	return Encode(rec)
}

func numberField(raw model.RawRecord, field string) (float64, error) {
	v, ok := utils.ToFloat(raw[field])
	if !ok {
		return 0, model.Invalidf(field, "expected a number, got %T", raw[field])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, model.Invalidf(field, "must be finite")
	}
	return v, nil
}

func stringField(raw model.RawRecord, field string) (string, error) {
	s, ok := raw[field].(string)
	if !ok {
		return "", model.Invalidf(field, "expected a string, got %T", raw[field])
	}
	return s, nil
}

func flagField(raw model.RawRecord, field string) (bool, error) {
	if b, ok := raw[field].(bool); ok {
		return b, nil
	}
	v, ok := utils.ToFloat(raw[field])
	if !ok {
		return false, model.Invalidf(field, "expected 0, 1 or a boolean, got %T", raw[field])
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, model.Invalidf(field, "expected 0 or 1, got %v", v)
}
