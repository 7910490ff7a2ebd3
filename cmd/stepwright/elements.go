package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahul/stepwright/internal/elements"
)

var elementsCmd = &cobra.Command{
	Use:   "elements <page.html>",
	Short: "List the test elements a saved page exposes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		found, err := elements.Extract(f)
		if err != nil {
			return err
		}
		snap := elements.NewSnapshot()
		snap.Merge(found...)

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(elementsCmd)
}
