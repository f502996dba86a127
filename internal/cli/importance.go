package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/service"
)

var importanceJSON bool

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Rank the saved model's features by importance",
	Args:  cobra.NoArgs,
	RunE:  runImportance,
}

func init() {
	importanceCmd.Flags().BoolVar(&importanceJSON, "json", false, "output the ranking as JSON")
	rootCmd.AddCommand(importanceCmd)
}

func runImportance(cmd *cobra.Command, args []string) error {
	state, err := artifacts.Load(cfg.Model.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	ranked, err := service.FeatureImportance(state)
	if err != nil {
		return err
	}

	if importanceJSON {
		return printJSON(cmd, model.ImportanceResponse{ModelID: state.ID, Importance: ranked})
	}
	printImportance(cmd, ranked)
	return nil
}
