// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/significance-miner/pkg/types"
)

func TestReadCSV_WebOfScienceHeaders(t *testing.T) {
	in := "\ufeffArticle Title,\"Times Cited, All Databases\",DOI,Publication Year\n" +
		"\"Effects of X on Y\",\"1,204\",10.1000/a1,2019\n" +
		"No DOI paper,3,,2020\n" +
		",,,\n" +
		"\"Title, with comma\",0, 10.1000/b2 ,2021\n"

	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.PaperRecord{
		{DOI: "10.1000/a1", Title: "Effects of X on Y", CitationCount: 1204},
		{DOI: "", Title: "No DOI paper", CitationCount: 3},
		{DOI: "10.1000/b2", Title: "Title, with comma", CitationCount: 0},
	}, recs)
}

func TestReadCSV_SnakeCaseHeaders(t *testing.T) {
	in := "doi,title,citation_count\n10.1/x,X,7\n10.1/y,Y,\n"
	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.PaperRecord{
		{DOI: "10.1/x", Title: "X", CitationCount: 7},
		{DOI: "10.1/y", Title: "Y"},
	}, recs)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"no doi column", "title,year\nX,2020\n", "no DOI column"},
		{"header only without doi", "title\n", "no DOI column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestReadCSV_MalformedCitationCountKeepsRow(t *testing.T) {
	in := "doi,title,citation_count\n10.1/a,A,4\n10.1/b,B,n/a\n10.1/c,C,9\n"
	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.PaperRecord{
		{DOI: "10.1/a", Title: "A", CitationCount: 4},
		{DOI: "10.1/b", Title: "B"},
		{DOI: "10.1/c", Title: "C", CitationCount: 9},
	}, recs)
}

func TestReadCSV_Empty(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadYAML(t *testing.T) {
	in := `
- doi: " 10.1000/a1 "
  title: First
  citation_count: 12
- title: Missing DOI
`
	recs, err := ReadYAML(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.PaperRecord{
		{DOI: "10.1000/a1", Title: "First", CitationCount: 12},
		{Title: "Missing DOI"},
	}, recs)

	_, err = ReadYAML(strings.NewReader("doi: [unterminated"))
	assert.Error(t, err)
}

func TestReadRecords_ByExtension(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	csvPath := write("papers.csv", "DOI,Article Title\n10.1/c,CSV\n")
	tsvPath := write("savedrecs.txt", "DI\tTI\tZ9\n10.1/t\tTSV\t5\n")
	yamlPath := write("papers.yaml", "- doi: 10.1/y\n  title: YAML\n")

	for path, want := range map[string]types.PaperRecord{
		csvPath:  {DOI: "10.1/c", Title: "CSV"},
		tsvPath:  {DOI: "10.1/t", Title: "TSV", CitationCount: 5},
		yamlPath: {DOI: "10.1/y", Title: "YAML"},
	} {
		recs, err := ReadRecords(path)
		require.NoError(t, err, path)
		assert.Equal(t, []types.PaperRecord{want}, recs, path)
	}

	_, err := ReadRecords(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
