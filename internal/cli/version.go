package cli

import (
	"github.com/spf13/cobra"

	"stackharness/internal/version"
)

// addVersionCommand adds the version subcommand.
func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.Get().String())
		},
	}
	rootCmd.AddCommand(versionCmd)
}
