package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rahul/stepwright/internal/scenario"
	"github.com/rahul/stepwright/internal/specsource"
)

var parseCmd = &cobra.Command{
	Use:   "parse <narrative-file>",
	Short: "Split a narrative into scenarios and show their action counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asXML, _ := cmd.Flags().GetBool("xml")
		src := &specsource.FileSource{}
		narrative, err := src.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printScenarios(cmd.OutOrStdout(), narrative, asXML)
	},
}

func init() {
	parseCmd.Flags().Bool("xml", false, "Print the scenario files handed to the planner")
	rootCmd.AddCommand(parseCmd)
}

func printScenarios(w io.Writer, narrative string, asXML bool) error {
	scenarios, err := scenario.Parse(narrative)
	if err != nil {
		return err
	}
	for _, sc := range scenarios {
		count, countErr := scenario.ActionCount(sc.Steps)
		if asXML {
			if countErr != nil {
				return fmt.Errorf("scenario %d: %w", sc.Index+1, countErr)
			}
			if err := sc.WriteXML(w, count); err != nil {
				return err
			}
			fmt.Fprintln(w)
			continue
		}

		if countErr != nil {
			fmt.Fprintf(w, "Scenario %d: %v\n", sc.Index+1, countErr)
		} else {
			fmt.Fprintf(w, "Scenario %d: %d action(s)\n", sc.Index+1, count)
		}
		counted := scenario.CountedSteps(sc.Steps)
		next := 0
		for _, st := range sc.Steps {
			marker := " "
			if next < len(counted) && counted[next] == st {
				marker = "*"
				next++
			}
			fmt.Fprintf(w, "  %s %s\n", marker, st)
		}
	}
	if !asXML {
		fmt.Fprintln(w, "(* = step planned as one action)")
	}
	return nil
}
