// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest reads the list of papers to process. CSV exports from
// bibliographic databases (Web of Science column names) and YAML lists of
// records are accepted.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// Recognized CSV header names, compared after lower-casing and trimming.
var (
	doiColumns      = []string{"doi", "di"}
	titleColumns    = []string{"article title", "title", "ti"}
	citationColumns = []string{"times cited, all databases", "citation_count", "citations", "z9"}
)

// ReadRecords loads records from path. The format follows the extension:
// .yaml/.yml is a YAML list, anything else is CSV. Rows with an empty DOI
// are kept; the pipeline reports them as invalid.
func ReadRecords(path string) ([]types.PaperRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening records %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(f)
	case ".tsv", ".txt":
		return readDelimited(f, '\t')
	default:
		return ReadCSV(f)
	}
}

// ReadYAML decodes a YAML list of records.
func ReadYAML(r io.Reader) ([]types.PaperRecord, error) {
	var recs []types.PaperRecord
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding YAML records: %w", err)
	}
	for i := range recs {
		recs[i].DOI = strings.TrimSpace(recs[i].DOI)
		recs[i].Title = strings.TrimSpace(recs[i].Title)
	}
	return recs, nil
}

// ReadCSV reads comma-separated records with a header row. The DOI column
// is required; title and citation count are optional. A citation count that
// is not a number is logged and read as zero.
func ReadCSV(r io.Reader) ([]types.PaperRecord, error) {
	return readDelimited(r, ',')
}

func readDelimited(r io.Reader, comma rune) ([]types.PaperRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := indexColumns(header)
	doiCol := cols.find(doiColumns)
	if doiCol < 0 {
		return nil, fmt.Errorf("no DOI column in header %q", header)
	}
	titleCol := cols.find(titleColumns)
	citeCol := cols.find(citationColumns)

	var recs []types.PaperRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if blank(row) {
			continue
		}
		rec := types.PaperRecord{
			DOI:   field(row, doiCol),
			Title: field(row, titleCol),
		}
		if v := field(row, citeCol); v != "" {
			n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
			if err != nil {
				slog.Warn("ignoring citation count", "row", line, "value", v, "err", err)
			} else {
				rec.CitationCount = n
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

type columns map[string]int

func indexColumns(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func (c columns) find(names []string) int {
	for _, n := range names {
		if i, ok := c[n]; ok {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
