package model

import (
	"fmt"
	"strings"
)

// Feature field names, in schema order.
const (
	FieldProjectAreaSqft       = "project_area_sqft"
	FieldNumFloors             = "num_floors"
	FieldConstructionType      = "construction_type"
	FieldLocationUrban         = "location_urban"
	FieldComplexityScore       = "complexity_score"
	FieldMaterialsQuality      = "materials_quality"
	FieldLaborCostPerSqft      = "labor_cost_per_sqft"
	FieldPermitsAndFees        = "permits_and_fees"
	FieldSitePreparationCost   = "site_preparation_cost"
	FieldUtilitiesCost         = "utilities_cost"
	FieldProjectDurationMonths = "project_duration_months"
)

// featureNames is the fixed feature order shared by training, persistence
// and inference. Use FeatureNames to get a copy.
var featureNames = [...]string{
	FieldProjectAreaSqft,
	FieldNumFloors,
	FieldConstructionType,
	FieldLocationUrban,
	FieldComplexityScore,
	FieldMaterialsQuality,
	FieldLaborCostPerSqft,
	FieldPermitsAndFees,
	FieldSitePreparationCost,
	FieldUtilitiesCost,
	FieldProjectDurationMonths,
}

// NumFeatures is the length of every encoded vector.
const NumFeatures = len(featureNames)

// FeatureNames returns the schema's feature order.
func FeatureNames() []string {
	out := make([]string, NumFeatures)
	copy(out, featureNames[:])
	return out
}

// ConstructionType is the project's building category.
type ConstructionType int

const (
	Residential ConstructionType = iota
	Commercial
	Industrial
)

// ConstructionTypes lists every construction type in rank order.
var ConstructionTypes = []ConstructionType{Residential, Commercial, Industrial}

// ParseConstructionType maps a case-insensitive name onto a ConstructionType.
func ParseConstructionType(s string) (ConstructionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "residential":
		return Residential, nil
	case "commercial":
		return Commercial, nil
	case "industrial":
		return Industrial, nil
	}
	return 0, Invalidf(FieldConstructionType, "unknown value %q (want residential, commercial or industrial)", s)
}

func (c ConstructionType) String() string {
	switch c {
	case Residential:
		return "residential"
	case Commercial:
		return "commercial"
	case Industrial:
		return "industrial"
	}
	return fmt.Sprintf("ConstructionType(%d)", int(c))
}

// Rank returns the integer code used in encoded vectors.
func (c ConstructionType) Rank() (float64, error) {
	switch c {
	case Residential:
		return 0, nil
	case Commercial:
		return 1, nil
	case Industrial:
		return 2, nil
	}
	return 0, Invalidf(FieldConstructionType, "unknown code %d", int(c))
}

func (c ConstructionType) MarshalText() ([]byte, error) {
	if _, err := c.Rank(); err != nil {
		return nil, err
	}
	return []byte(c.String()), nil
}

func (c *ConstructionType) UnmarshalText(text []byte) error {
	v, err := ParseConstructionType(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MaterialsQuality is the grade of materials used on the project.
type MaterialsQuality int

const (
	LowQuality MaterialsQuality = iota
	MediumQuality
	HighQuality
)

// MaterialsQualities lists every materials grade in rank order.
var MaterialsQualities = []MaterialsQuality{LowQuality, MediumQuality, HighQuality}

// ParseMaterialsQuality maps a case-insensitive name onto a MaterialsQuality.
func ParseMaterialsQuality(s string) (MaterialsQuality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LowQuality, nil
	case "medium":
		return MediumQuality, nil
	case "high":
		return HighQuality, nil
	}
	return 0, Invalidf(FieldMaterialsQuality, "unknown value %q (want low, medium or high)", s)
}

func (q MaterialsQuality) String() string {
	switch q {
	case LowQuality:
		return "low"
	case MediumQuality:
		return "medium"
	case HighQuality:
		return "high"
	}
	return fmt.Sprintf("MaterialsQuality(%d)", int(q))
}

// Rank returns the integer code used in encoded vectors.
func (q MaterialsQuality) Rank() (float64, error) {
	switch q {
	case LowQuality:
		return 0, nil
	case MediumQuality:
		return 1, nil
	case HighQuality:
		return 2, nil
	}
	return 0, Invalidf(FieldMaterialsQuality, "unknown code %d", int(q))
}

// Multiplier is the cost factor the materials grade applies to base cost.
func (q MaterialsQuality) Multiplier() float64 {
	switch q {
	case LowQuality:
		return 0.8
	case MediumQuality:
		return 1.0
	case HighQuality:
		return 1.3
	}
	return 1.0
}

func (q MaterialsQuality) MarshalText() ([]byte, error) {
	if _, err := q.Rank(); err != nil {
		return nil, err
	}
	return []byte(q.String()), nil
}

func (q *MaterialsQuality) UnmarshalText(text []byte) error {
	v, err := ParseMaterialsQuality(string(text))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// FeatureRecord is one construction project described by the eleven schema fields.
type FeatureRecord struct {
	ProjectAreaSqft       float64          `json:"project_area_sqft"`
	NumFloors             int              `json:"num_floors"`
	ConstructionType      ConstructionType `json:"construction_type"`
	LocationUrban         bool             `json:"location_urban"`
	ComplexityScore       float64          `json:"complexity_score"`
	MaterialsQuality      MaterialsQuality `json:"materials_quality"`
	LaborCostPerSqft      float64          `json:"labor_cost_per_sqft"`
	PermitsAndFees        float64          `json:"permits_and_fees"`
	SitePreparationCost   float64          `json:"site_preparation_cost"`
	UtilitiesCost         float64          `json:"utilities_cost"`
	ProjectDurationMonths float64          `json:"project_duration_months"`
}

// Raw converts the record back into the field -> value mapping accepted at
// the inference boundary.
func (r FeatureRecord) Raw() RawRecord {
	urban := 0
	if r.LocationUrban {
		urban = 1
	}
	return RawRecord{
		FieldProjectAreaSqft:       r.ProjectAreaSqft,
		FieldNumFloors:             r.NumFloors,
		FieldConstructionType:      r.ConstructionType.String(),
		FieldLocationUrban:         urban,
		FieldComplexityScore:       r.ComplexityScore,
		FieldMaterialsQuality:      r.MaterialsQuality.String(),
		FieldLaborCostPerSqft:      r.LaborCostPerSqft,
		FieldPermitsAndFees:        r.PermitsAndFees,
		FieldSitePreparationCost:   r.SitePreparationCost,
		FieldUtilitiesCost:         r.UtilitiesCost,
		FieldProjectDurationMonths: r.ProjectDurationMonths,
	}
}

// RawRecord is an untyped field -> value mapping as received from a caller.
type RawRecord map[string]any

// LabeledRecord pairs a typed record with its budget.
type LabeledRecord struct {
	Record FeatureRecord
	Label  float64
}

// TrainingExample is an encoded vector plus its budget.
type TrainingExample struct {
	Features []float64
	Label    float64
}
