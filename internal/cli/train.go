package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"budgetpredictor/internal/config"
	"budgetpredictor/internal/model"
	"budgetpredictor/internal/repository"
	"budgetpredictor/internal/service"
	"budgetpredictor/internal/utils"
)

var (
	trainSamples    int
	trainSeed       int64
	trainTrees      int
	trainConfigFile string
	trainOut        string
	trainJSON       bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model on synthetic projects and save it",
	Long: `Generates synthetic projects, fits the standardizer and random forest on
an 80/20 split, reports holdout metrics and feature importance, and saves
the fitted model. The run is recorded in PostgreSQL when it is configured.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().IntVar(&trainSamples, "samples", 0, "number of synthetic projects (default from config)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "random seed (default from config)")
	trainCmd.Flags().IntVar(&trainTrees, "trees", 0, "number of trees (default from config)")
	trainCmd.Flags().StringVar(&trainConfigFile, "config", "", "TOML file with a [model] table")
	trainCmd.Flags().StringVarP(&trainOut, "out", "o", "", "artifact path (default --model)")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	mc := cfg.Model
	if trainConfigFile != "" {
		if err := config.LoadTrainingFile(trainConfigFile, &mc); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("samples") {
		mc.Samples = trainSamples
	}
	if cmd.Flags().Changed("seed") {
		mc.Seed = trainSeed
	}
	if cmd.Flags().Changed("trees") {
		mc.NumTrees = trainTrees
	}
	if trainOut != "" {
		mc.ArtifactPath = trainOut
	}
	if err := mc.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	runs, closeRuns, err := openRunStore(ctx)
	if err != nil {
		return err
	}
	defer closeRuns()

	svc := service.NewBudgetService(service.NewPredictor(), artifacts, runs, mc.ArtifactPath)
	report, err := svc.Train(ctx, service.TrainOptions{
		Samples:      mc.Samples,
		Seed:         mc.Seed,
		TestRatio:    mc.TestRatio,
		Params:       mc.Hyperparameters(),
		ArtifactPath: mc.ArtifactPath,
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if trainJSON {
		return printJSON(cmd, report)
	}
	printReport(cmd, report)
	return nil
}

// openRunStore connects to PostgreSQL when it is configured. The returned
// store is nil otherwise.
func openRunStore(ctx context.Context) (service.RunStore, func(), error) {
	if !cfg.PostgreSQL.Enabled {
		return nil, func() {}, nil
	}
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, nil, err
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}, nil
}

func printReport(cmd *cobra.Command, report *model.TrainingReport) {
	cmd.Printf("Trained on %d projects, evaluated on %d (seed %d)\n", report.TrainSize, report.TestSize, report.Seed)
	cmd.Println()
	printMetrics(cmd, report.Metrics)
	cmd.Println()
	printImportance(cmd, report.Importance)
	cmd.Println()
	if report.ArtifactPath != "" {
		cmd.Printf("Model saved to %s\n", report.ArtifactPath)
	}
	cmd.Printf("Sample project prediction: %s\n", utils.FormatCurrency(report.SamplePrediction))
}

func printMetrics(cmd *cobra.Command, m model.Metrics) {
	cmd.Printf("Mean Absolute Error:     %s\n", utils.FormatCurrency(m.MAE))
	cmd.Printf("Root Mean Squared Error: %s\n", utils.FormatCurrency(m.RMSE))
	cmd.Printf("R² Score:                %.4f\n", m.R2)
}

func printImportance(cmd *cobra.Command, ranked []model.FeatureImportance) {
	cmd.Println("Feature Importance:")
	for _, fi := range ranked {
		cmd.Printf("  %-25s %.4f\n", fi.Feature, fi.Importance)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
