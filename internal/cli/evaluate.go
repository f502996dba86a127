package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetpredictor/internal/service"
)

var (
	evalSamples int
	evalSeed    int64
	evalJSON    bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a saved model on fresh synthetic projects",
	Args:  cobra.NoArgs,
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().IntVar(&evalSamples, "samples", 500, "number of synthetic projects")
	evaluateCmd.Flags().Int64Var(&evalSeed, "seed", 7, "random seed for the evaluation data")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "output metrics as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	state, err := artifacts.Load(cfg.Model.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	metrics, err := service.Evaluate(state, service.Generate(evalSamples, evalSeed))
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if evalJSON {
		return printJSON(cmd, metrics)
	}
	cmd.Printf("Evaluated model %s on %d projects (seed %d)\n", state.ID, metrics.N, evalSeed)
	cmd.Println()
	printMetrics(cmd, metrics)
	return nil
}
