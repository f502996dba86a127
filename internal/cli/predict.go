package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/service"
	"budgetpredictor/internal/utils"
)

var (
	predictInput  string
	predictJSON   bool
	predictSample bool

	predictRecord struct {
		area       float64
		floors     int
		ctype      string
		urban      int
		complexity float64
		quality    string
		labor      float64
		permits    float64
		sitePrep   float64
		utilities  float64
		duration   float64
	}
)

// fieldFlags maps each record field to the flag that sets it.
var fieldFlags = []struct {
	field string
	flag  string
}{
	{model.FieldProjectAreaSqft, "area"},
	{model.FieldNumFloors, "floors"},
	{model.FieldConstructionType, "type"},
	{model.FieldLocationUrban, "urban"},
	{model.FieldComplexityScore, "complexity"},
	{model.FieldMaterialsQuality, "quality"},
	{model.FieldLaborCostPerSqft, "labor"},
	{model.FieldPermitsAndFees, "permits"},
	{model.FieldSitePreparationCost, "site-prep"},
	{model.FieldUtilitiesCost, "utilities"},
	{model.FieldProjectDurationMonths, "duration"},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict construction budgets with a saved model",
	Long: `Predicts the budget of one project given by flags, or of every project in
a JSON file (a single object or an array of objects). Use --input - to
read JSON from stdin.`,
	Example: `  budgetctl predict --area 5000 --floors 3 --type commercial --urban 1 \
    --complexity 7.5 --quality high --labor 120 --permits 15000 \
    --site-prep 25000 --utilities 12000 --duration 12
  budgetctl predict --input projects.json --json
  budgetctl predict --sample`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictInput, "input", "i", "", "JSON file with one record or an array of records, - for stdin")
	f.BoolVar(&predictJSON, "json", false, "output predictions as JSON")
	f.BoolVar(&predictSample, "sample", false, "predict the reference sample project")

	f.Float64Var(&predictRecord.area, "area", 0, "project area in square feet")
	f.IntVar(&predictRecord.floors, "floors", 0, "number of floors")
	f.StringVar(&predictRecord.ctype, "type", "", "construction type: residential, commercial, industrial")
	f.IntVar(&predictRecord.urban, "urban", 0, "1 for an urban location, 0 otherwise")
	f.Float64Var(&predictRecord.complexity, "complexity", 0, "complexity score from 1 to 10")
	f.StringVar(&predictRecord.quality, "quality", "", "materials quality: low, medium, high")
	f.Float64Var(&predictRecord.labor, "labor", 0, "labor cost per square foot")
	f.Float64Var(&predictRecord.permits, "permits", 0, "permits and fees")
	f.Float64Var(&predictRecord.sitePrep, "site-prep", 0, "site preparation cost")
	f.Float64Var(&predictRecord.utilities, "utilities", 0, "utilities cost")
	f.Float64Var(&predictRecord.duration, "duration", 0, "project duration in months")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	raws, err := predictInputRecords(cmd)
	if err != nil {
		return err
	}

	state, err := artifacts.Load(cfg.Model.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	predictor := service.NewPredictor()
	if _, err := predictor.Swap(state); err != nil {
		return err
	}

	var preds []float64
	if len(raws) == 1 {
		p, err := predictor.Predict(raws[0])
		if err != nil {
			return fmt.Errorf("prediction failed: %w", err)
		}
		preds = []float64{p}
	} else {
		preds, err = predictor.PredictBatch(raws)
		if err != nil {
			return fmt.Errorf("prediction failed: %w", err)
		}
	}

	if predictJSON {
		if len(preds) == 1 {
			return printJSON(cmd, model.PredictResponse{PredictedBudget: preds[0], ModelID: state.ID})
		}
		return printJSON(cmd, model.BatchPredictResponse{Predictions: preds, Count: len(preds), ModelID: state.ID})
	}

	for i, p := range preds {
		if len(preds) > 1 {
			cmd.Printf("[%d] ", i+1)
		}
		cmd.Printf("Predicted construction budget: %s\n", utils.FormatCurrency(p))
	}
	return nil
}

func predictInputRecords(cmd *cobra.Command) ([]model.RawRecord, error) {
	if predictSample {
		if predictInput != "" {
			return nil, fmt.Errorf("--sample and --input cannot be combined")
		}
		return []model.RawRecord{service.SampleProject.Raw()}, nil
	}
	if predictInput == "" {
		raw, err := flagRecord(cmd)
		if err != nil {
			return nil, err
		}
		return []model.RawRecord{raw}, nil
	}

	var data []byte
	var err error
	if predictInput == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(predictInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	docs, err := utils.ParseRecords(data)
	if err != nil {
		return nil, err
	}
	raws := make([]model.RawRecord, len(docs))
	for i, doc := range docs {
		raws[i] = doc
	}
	return raws, nil
}

// flagRecord builds a record from the per-field flags. Every field flag
// must be given.
func flagRecord(cmd *cobra.Command) (model.RawRecord, error) {
	var missing []string
	for _, ff := range fieldFlags {
		if !cmd.Flags().Changed(ff.flag) {
			missing = append(missing, "--"+ff.flag)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing flags %s (or use --input or --sample)", strings.Join(missing, ", "))
	}

	r := predictRecord
	return model.RawRecord{
		model.FieldProjectAreaSqft:       r.area,
		model.FieldNumFloors:             r.floors,
		model.FieldConstructionType:      r.ctype,
		model.FieldLocationUrban:         r.urban,
		model.FieldComplexityScore:       r.complexity,
		model.FieldMaterialsQuality:      r.quality,
		model.FieldLaborCostPerSqft:      r.labor,
		model.FieldPermitsAndFees:        r.permits,
		model.FieldSitePreparationCost:   r.sitePrep,
		model.FieldUtilitiesCost:         r.utilities,
		model.FieldProjectDurationMonths: r.duration,
	}, nil
}
