package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("budgetctl version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
