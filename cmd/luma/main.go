// Package main provides the CLI entry point for the luma launcher.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevelFlag string
	logFileFlag  string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return 1
	}

	return 0
}

var rootCmd = &cobra.Command{
	Use:   "luma",
	Short: "Keyboard launcher",
	Long: `luma is a plugin-based keyboard launcher. It routes queries to the
handlers contributed by loaded plugins and ranks their results.

Run without arguments for the interactive prompt.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		checkVersionFlag()
	},
	RunE:              runInteractive,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&logLevelFlag,
		"log-level",
		"",
		"Log level (DEBUG, INFO, ERROR); overrides the config file",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFileFlag,
		"log-file",
		"",
		"Log destination file; overrides the config file",
	)
}
