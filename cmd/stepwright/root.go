package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepwright",
	Short: "Stepwright runs given/when/then narratives against a live web app",
	Long: `Stepwright turns a given/when/then narrative into UI actions, executes them
one at a time in Chrome while re-planning from the page it observes, and asks
a language model to judge whether the expected outcome was reached.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.json", "Path to the JSON or YAML config file")
}
