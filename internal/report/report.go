// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders run reports and the threshold analysis of paper
// verdicts.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// Print writes the run summary to w: paper counts, label counts over all
// windows, the skip-reason breakdown, and one line per skipped paper.
func Print(w io.Writer, r types.RunReport) {
	fmt.Fprintf(w, "\nRun summary: %d done, %d without matches, %d skipped (total: %d)\n",
		r.Done, r.NoContent, r.Skipped, r.Total())

	fmt.Fprintln(w, "\nLabels:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, l := range types.Labels {
		fmt.Fprintf(tw, "  %s\t%d\n", l, r.Labels[l])
	}
	tw.Flush()

	if !r.HasSkips() {
		return
	}

	fmt.Fprintln(w, "\nSkipped:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, reason := range types.SkipReasons {
		if n := r.SkipReasons[reason]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", reason, n)
		}
	}
	tw.Flush()

	fmt.Fprintln(w)
	for _, o := range r.Outcomes {
		if o.State != types.StateSkipped {
			continue
		}
		doi := o.Record.DOI
		if doi == "" {
			doi = fmt.Sprintf("(no DOI: %q)", o.Record.Title)
		}
		if o.Detail != "" {
			fmt.Fprintf(w, "skipped: %s (%s: %s)\n", doi, o.SkipReason, o.Detail)
		} else {
			fmt.Fprintf(w, "skipped: %s (%s)\n", doi, o.SkipReason)
		}
	}
}
