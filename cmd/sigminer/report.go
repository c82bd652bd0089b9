// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/significance-miner/internal/report"
	"github.com/pdiddy/significance-miner/internal/results"
	"github.com/pdiddy/significance-miner/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the stored results of the last run",
	Long: `Report reads <output-dir>/results.db and prints the run summary and the
threshold analysis without re-running anything. It also works on the
partial results of an interrupted run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := results.NewStore(runConfig().OutputDir)
		if err != nil {
			return err
		}
		defer store.Close()

		outcomes, err := store.Outcomes(cmd.Context())
		if err != nil {
			return err
		}
		report.Print(os.Stdout, types.NewRunReport(outcomes))
		report.PrintThresholds(os.Stdout, outcomes)
		return nil
	},
}

func init() {
	addOutputFlags(reportCmd.Flags())
	rootCmd.AddCommand(reportCmd)
}
