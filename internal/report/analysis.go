// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// startThreshold is the first window-count threshold analysed.
const startThreshold = 2

// Verdict is the paper-level reading of its window labels.
type Verdict struct {
	DOI         string
	Windows     int
	Significant bool
}

// PaperVerdict decides a paper from its labels: significant if any window
// is significant, not significant if none is but at least one window is
// not significant. ok is false when every window is indeterminate or the
// paper has none.
func PaperVerdict(o types.PaperOutcome) (v Verdict, ok bool) {
	var sig, notSig bool
	for _, c := range o.Classifications {
		switch c.Label {
		case types.LabelSignificant:
			sig = true
		case types.LabelNotSignificant:
			notSig = true
		}
	}
	if !sig && !notSig {
		return Verdict{}, false
	}
	return Verdict{DOI: o.Record.DOI, Windows: len(o.Windows), Significant: sig}, true
}

// Verdicts returns the verdict of every decided paper, in outcome order.
func Verdicts(outcomes []types.PaperOutcome) []Verdict {
	var out []Verdict
	for _, o := range outcomes {
		if v, ok := PaperVerdict(o); ok {
			out = append(out, v)
		}
	}
	return out
}

// ThresholdRow counts the decided papers with fewer than Threshold windows.
type ThresholdRow struct {
	Threshold      int     `json:"threshold" yaml:"threshold"`
	Total          int     `json:"total" yaml:"total"`
	Significant    int     `json:"significant" yaml:"significant"`
	NotSignificant int     `json:"not_significant" yaml:"not_significant"`
	Percentage     float64 `json:"percentage" yaml:"percentage"`
}

// Thresholds analyses verdicts at thresholds 2, 3, ... and stops at the
// first threshold whose total equals the previous non-zero total.
func Thresholds(verdicts []Verdict) []ThresholdRow {
	if len(verdicts) == 0 {
		return nil
	}
	var rows []ThresholdRow
	prev := 0
	for t := startThreshold; ; t++ {
		row := ThresholdRow{Threshold: t}
		for _, v := range verdicts {
			if v.Windows >= t {
				continue
			}
			if v.Significant {
				row.Significant++
			} else {
				row.NotSignificant++
			}
		}
		row.Total = row.Significant + row.NotSignificant
		if row.Total > 0 {
			row.Percentage = float64(row.Significant) / float64(row.Total) * 100
		}
		if row.Total == prev && row.Total > 0 {
			break
		}
		rows = append(rows, row)
		prev = row.Total
	}
	return rows
}

// Stats summarises the significant percentage across threshold rows.
type Stats struct {
	AveragePercentage float64 `json:"average_percentage" yaml:"average_percentage"`
	Variance          float64 `json:"variance" yaml:"variance"`
}

// Statistics returns the mean and population variance of the row
// percentages. ok is false for no rows.
func Statistics(rows []ThresholdRow) (s Stats, ok bool) {
	if len(rows) == 0 {
		return Stats{}, false
	}
	for _, r := range rows {
		s.AveragePercentage += r.Percentage
	}
	s.AveragePercentage /= float64(len(rows))
	for _, r := range rows {
		d := r.Percentage - s.AveragePercentage
		s.Variance += d * d
	}
	s.Variance /= float64(len(rows))
	return s, true
}

// PrintThresholds writes the threshold table and its statistics to w.
func PrintThresholds(w io.Writer, outcomes []types.PaperOutcome) {
	verdicts := Verdicts(outcomes)
	rows := Thresholds(verdicts)
	if len(rows) == 0 {
		fmt.Fprintln(w, "\nThreshold analysis: no decided papers")
		return
	}

	fmt.Fprintf(w, "\nThreshold analysis (%d decided papers):\n", len(verdicts))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "windows <\ttotal\tsignificant\tnot significant\tsignificant %\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.2f\t\n", r.Threshold, r.Total, r.Significant, r.NotSignificant, r.Percentage)
	}
	tw.Flush()

	if s, ok := Statistics(rows); ok {
		fmt.Fprintf(w, "average significant %%: %.2f, variance: %.2f\n", s.AveragePercentage, s.Variance)
	}
}
