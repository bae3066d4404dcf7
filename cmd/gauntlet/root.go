package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "Feature verification and change-impact engine",
	Long: `Gauntlet tracks a project's features through failing, verified and done,
and decides on every change what must be re-checked.

Core capabilities:
- Maps changed files to the features they plausibly affect
- Finds the tests that cover a change and runs only those
- Runs a fast diff-driven check or a full check of one feature
- Verifies acceptance criteria with an AI agent when configured
- Keeps an immutable verification history per feature`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", "", "Project directory (defaults to the current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
