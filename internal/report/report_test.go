// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/significance-miner/pkg/types"
)

func outcome(doi string, labels ...types.Label) types.PaperOutcome {
	o := types.PaperOutcome{Record: types.PaperRecord{DOI: doi}, State: types.StateDone}
	for i, l := range labels {
		w := types.ContextWindow{SourceDOI: doi, Start: i * 10, End: i*10 + 5}
		o.Windows = append(o.Windows, w)
		o.Classifications = append(o.Classifications, types.Classification{Window: w, Label: l})
	}
	return o
}

const (
	sig   = types.LabelSignificant
	nsig  = types.LabelNotSignificant
	indet = types.LabelIndeterminate
)

func TestPaperVerdict(t *testing.T) {
	tests := []struct {
		name   string
		labels []types.Label
		wantOK bool
		want   bool
	}{
		{"any significant wins", []types.Label{nsig, indet, sig}, true, true},
		{"only not significant", []types.Label{nsig, indet}, true, false},
		{"all indeterminate", []types.Label{indet, indet}, false, false},
		{"no windows", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := PaperVerdict(outcome("10.1/x", tt.labels...))
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, v.Significant)
				assert.Equal(t, len(tt.labels), v.Windows)
			}
		})
	}
}

func TestThresholds(t *testing.T) {
	verdicts := []Verdict{
		{DOI: "a", Windows: 1, Significant: true},
		{DOI: "b", Windows: 1, Significant: false},
		{DOI: "c", Windows: 2, Significant: true},
		{DOI: "d", Windows: 3, Significant: true},
	}
	rows := Thresholds(verdicts)
	require.Len(t, rows, 3)

	assert.Equal(t, ThresholdRow{Threshold: 2, Total: 2, Significant: 1, NotSignificant: 1, Percentage: 50}, rows[0])
	assert.Equal(t, 3, rows[1].Total)
	assert.Equal(t, 4, rows[2].Total)
	assert.Equal(t, 4, rows[2].Threshold)
	assert.InDelta(t, 75.0, rows[2].Percentage, 1e-9)
}

func TestThresholds_StopsWhenTotalStalls(t *testing.T) {
	// No paper has exactly 2 windows, so the total stalls at threshold 3.
	verdicts := []Verdict{
		{Windows: 1, Significant: true},
		{Windows: 5, Significant: false},
	}
	rows := Thresholds(verdicts)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Threshold)
	assert.Equal(t, 1, rows[0].Total)
}

func TestThresholds_LeadingZeros(t *testing.T) {
	rows := Thresholds([]Verdict{{Windows: 3, Significant: true}})
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].Total)
	assert.Equal(t, 0, rows[1].Total)
	assert.Equal(t, 1, rows[2].Total)
	assert.Equal(t, 0.0, rows[0].Percentage)
}

func TestThresholds_Empty(t *testing.T) {
	assert.Nil(t, Thresholds(nil))
}

func TestStatistics(t *testing.T) {
	_, ok := Statistics(nil)
	assert.False(t, ok)

	s, ok := Statistics([]ThresholdRow{{Percentage: 50}, {Percentage: 100}})
	require.True(t, ok)
	assert.InDelta(t, 75.0, s.AveragePercentage, 1e-9)
	assert.InDelta(t, 625.0, s.Variance, 1e-9)
}

func TestPrint(t *testing.T) {
	outcomes := []types.PaperOutcome{
		outcome("10.1/a", sig, indet),
		{Record: types.PaperRecord{DOI: "10.1/b"}, State: types.StateNoContent},
		{Record: types.PaperRecord{DOI: "10.1/c"}, State: types.StateSkipped, SkipReason: types.SkipNotFound, Detail: "no open-access record"},
		{Record: types.PaperRecord{Title: "Untitled"}, State: types.StateSkipped, SkipReason: types.SkipInvalidRecord},
	}
	var buf bytes.Buffer
	Print(&buf, types.NewRunReport(outcomes))
	out := buf.String()

	assert.Contains(t, out, "1 done, 1 without matches, 2 skipped (total: 4)")
	assert.Regexp(t, `significant\s+1`, out)
	assert.Regexp(t, `indeterminate\s+1`, out)
	assert.Regexp(t, `not_found\s+1`, out)
	assert.Regexp(t, `invalid_record\s+1`, out)
	assert.Contains(t, out, "skipped: 10.1/c (not_found: no open-access record)")
	assert.Contains(t, out, `skipped: (no DOI: "Untitled") (invalid_record)`)
	assert.NotContains(t, out, "paywalled", "empty reasons are omitted")
}

func TestPrint_NoSkips(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, types.NewRunReport([]types.PaperOutcome{outcome("10.1/a", nsig)}))
	assert.NotContains(t, buf.String(), "Skipped:")
}

func TestPrintThresholds(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholds(&buf, []types.PaperOutcome{outcome("a", sig), outcome("b", nsig, nsig)})
	out := buf.String()
	assert.Contains(t, out, "Threshold analysis (2 decided papers)")
	assert.Contains(t, out, "average significant %")
	assert.Contains(t, out, "100.00")
	assert.Contains(t, out, "50.00")
	assert.Contains(t, out, "average significant %: 75.00, variance: 625.00")
	assert.Equal(t, 4, strings.Count(out, "\n")-2, "header, two rows and the statistics line")
}

func TestPrintThresholds_NoDecided(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholds(&buf, []types.PaperOutcome{outcome("a", indet)})
	assert.Contains(t, buf.String(), "no decided papers")
}
