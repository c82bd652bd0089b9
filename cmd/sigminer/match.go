// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/significance-miner/internal/acquire"
	"github.com/pdiddy/significance-miner/internal/convert"
	"github.com/pdiddy/significance-miner/internal/match"
	"github.com/pdiddy/significance-miner/internal/results"
	"github.com/pdiddy/significance-miner/pkg/types"
)

var matchCmd = &cobra.Command{
	Use:   "match <records-file | DOI...>",
	Short: "Find context windows in already acquired papers",
	Long: `Match converts cached PDFs to text and prints the context windows found
around the search terms as YAML (DOI -> windows), in the relevance.yaml
format. No network access and no classifier calls are made; papers not yet
acquired are reported on stderr and skipped. Use it to tune search terms
and window sizes before a full run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	addMatchFlags(matchCmd.Flags())
	matchCmd.Flags().String("papers-dir", "", "cache directory for PDFs and text (default papers)")
	matchCmd.Flags().StringP("out", "o", "", "write YAML to this file instead of stdout")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := runConfig()
	terms, err := types.ParseSearchTerms(cfg.Match.SearchTerms)
	if err != nil {
		return err
	}
	records, err := recordsFromArgs(args)
	if err != nil {
		return err
	}
	conv, err := convert.New(cmd.Context(), cfg.Conversion)
	if err != nil {
		return err
	}

	opts := match.OptionsFrom(cfg.Match)
	papersDir := cfg.Acquisition.PapersDir
	windows := make(map[string][]results.WindowEntry)
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		doi, err := acquire.NormalizeDOI(rec.DOI)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipped: %q (%v)\n", rec.DOI, err)
			continue
		}
		if seen[doi] {
			continue
		}
		seen[doi] = true
		pdf, err := os.ReadFile(acquire.PDFPath(papersDir, doi))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "skipped: %s (not acquired)\n", doi)
				continue
			}
			return err
		}
		text, _, err := convert.ConvertCached(cmd.Context(), conv, convert.TextPath(papersDir, acquire.Slug(doi)), pdf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipped: %s (%v)\n", doi, err)
			continue
		}
		for _, w := range match.FindWindows(doi, text, terms, opts) {
			windows[doi] = append(windows[doi], results.NewWindowEntry(w))
		}
	}

	var w io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(windows); err != nil {
		return fmt.Errorf("encoding windows: %w", err)
	}
	return enc.Close()
}
