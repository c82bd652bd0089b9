// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/significance-miner/internal/acquire"
	"github.com/pdiddy/significance-miner/internal/classify"
	"github.com/pdiddy/significance-miner/internal/convert"
	"github.com/pdiddy/significance-miner/internal/ingest"
	"github.com/pdiddy/significance-miner/internal/pipeline"
	"github.com/pdiddy/significance-miner/internal/report"
	"github.com/pdiddy/significance-miner/internal/results"
)

var runCmd = &cobra.Command{
	Use:   "run <records-file>",
	Short: "Acquire, match, and classify every paper in a metadata export",
	Long: `Run processes each record of a CSV, TSV, or YAML metadata file through the
full pipeline: resolve the DOI to an open-access PDF, extract text, find
context windows around the search terms, and classify each window.

A failure in one paper is recorded with its reason and never stops the run.
Interrupting the run (Ctrl-C) lets the papers in progress finish and records
the remaining papers as interrupted; a second Ctrl-C abandons the papers in
progress too. Everything finished so far is already in the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	addAcquisitionFlags(runCmd.Flags())
	addMatchFlags(runCmd.Flags())
	addClassifierFlags(runCmd.Flags())
	addOutputFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := runConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	records, err := ingest.ReadRecords(args[0])
	if err != nil {
		return err
	}
	logger.Info("records loaded", "file", args[0], "count", len(records))

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	chain, err := acquire.NewChain(&http.Client{}, cfg.Acquisition, logger)
	if err != nil {
		return err
	}
	conv, err := convert.New(ctx, cfg.Conversion)
	if err != nil {
		return err
	}
	cls, err := classify.New(cfg.Classifier)
	if err != nil {
		return err
	}
	store, err := results.NewStore(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := pipeline.New(cfg, pipeline.Deps{
		Resolver:   chain,
		Converter:  conv,
		Classifier: cls,
		Store:      store,
		Out:        os.Stdout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go watchSignals(sigs, done, cancel, orch.Abort)

	rep, runErr := orch.Run(ctx, records)
	report.Print(os.Stdout, rep)
	report.PrintThresholds(os.Stdout, rep.Outcomes)
	if runErr != nil {
		return runErr
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	fmt.Fprintf(os.Stdout, "\nArtifacts written to %s\n", cfg.OutputDir)
	return nil
}

// errInterrupted is the cause recorded when the run is stopped by a signal.
var errInterrupted = errors.New("interrupted by signal")

// watchSignals stops new papers on the first signal and aborts the papers
// in flight on the second.
func watchSignals(sigs <-chan os.Signal, done <-chan struct{}, cancel context.CancelCauseFunc, abort func()) {
	select {
	case sig := <-sigs:
		logger.Warn("stopping after papers in progress; signal again to abort them", "signal", sig)
		cancel(errInterrupted)
	case <-done:
		return
	}
	select {
	case sig := <-sigs:
		logger.Warn("aborting papers in progress", "signal", sig)
		abort()
	case <-done:
	}
}
