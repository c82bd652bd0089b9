// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/significance-miner/internal/acquire"
	"github.com/pdiddy/significance-miner/internal/httputil"
	"github.com/pdiddy/significance-miner/internal/ingest"
	"github.com/pdiddy/significance-miner/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <records-file | DOI...>",
	Short: "Download open-access PDFs without matching or classifying",
	Long: `Acquire resolves DOIs to PDFs through the configured strategy chain and
caches them under <papers-dir>/raw with a metadata record per paper. Papers
already cached are not downloaded again. Arguments are either one metadata
file or a list of DOIs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAcquire,
}

func init() {
	addAcquisitionFlags(acquireCmd.Flags())
	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	cfg := runConfig().Acquisition
	if cfg.PapersDir == "" {
		return fmt.Errorf("papers_dir is required for acquire")
	}

	records, err := recordsFromArgs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	chain, err := acquire.NewChain(&http.Client{}, cfg, logger)
	if err != nil {
		return err
	}
	limiter := httputil.NewLimiter(cfg.DownloadDelay)

	var acquired, failed int
	for _, rec := range records {
		doi, err := acquire.NormalizeDOI(rec.DOI)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %q (%v)\n", rec.DOI, err)
			failed++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		fmt.Fprintf(os.Stdout, "resolving: %s\n", doi)
		res := chain.Resolve(ctx, doi)
		if !res.OK() {
			fmt.Fprintf(os.Stdout, "failed:  %s (%s)\n", doi, res)
			failed++
			continue
		}
		rec.DOI = doi
		if err := acquire.WriteMetadata(cfg.PapersDir, rec, res); err != nil {
			logger.Warn("writing metadata", "doi", doi, "err", err)
		}
		acquired++
	}

	fmt.Fprintf(os.Stdout, "\nBatch summary: %d acquired, %d failed (total: %d)\n",
		acquired, failed, len(records))
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d of %d papers", acquired+failed, len(records))
	}
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed acquisition", failed)
	}
	return nil
}

// recordsFromArgs reads a single metadata file, or treats every argument
// as a DOI.
func recordsFromArgs(args []string) ([]types.PaperRecord, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err == nil {
			return ingest.ReadRecords(args[0])
		}
	}
	records := make([]types.PaperRecord, len(args))
	for i, a := range args {
		records[i] = types.PaperRecord{DOI: a}
	}
	return records, nil
}
