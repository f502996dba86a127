package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"budgetpredictor/internal/config"
	"budgetpredictor/internal/logger"
	"budgetpredictor/internal/repository"
)

var (
	modelPath string
	logLevel  string

	cfg       *config.Config
	logCloser io.Closer
	artifacts = repository.NewArtifactStore()
)

var rootCmd = &cobra.Command{
	Use:   "budgetctl",
	Short: "Train and query the construction budget model",
	Long: `budgetctl trains the construction budget model on synthetic projects,
evaluates saved models and predicts budgets from the command line.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "model artifact path (default from MODEL_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// Execute runs the root command. Command output goes to stdout, errors and
// logs to stderr.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	err := rootCmd.Execute()
	closeLog()
	return err
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if modelPath != "" {
		loaded.Model.ArtifactPath = modelPath
	}

	// logs go to stderr so they never mix with command output
	loaded.Logging.Level = logLevel
	if os.Getenv("LOG_OUTPUT") == "" {
		loaded.Logging.Output = "stderr"
	}
	if os.Getenv("LOG_FORMAT") == "" {
		loaded.Logging.Format = "text"
	}
	closeLog()
	closer, err := logger.Setup(loaded.Logging)
	if err != nil {
		return err
	}

	logCloser = closer
	cfg = loaded
	return nil
}
