// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/significance-miner/internal/fsutil"
	"github.com/pdiddy/significance-miner/pkg/types"
)

// Artifact file names written to the output directory.
const (
	RelevanceFile      = "relevance.yaml"
	ClassificationFile = "classification.yaml"
	PapersFile         = "papers.yaml"
)

// WindowEntry is one context window in relevance.yaml.
type WindowEntry struct {
	Start int      `yaml:"start"`
	End   int      `yaml:"end"`
	Text  string   `yaml:"text"`
	Terms []string `yaml:"terms"`
}

// LabelEntry is one classified window in classification.yaml.
type LabelEntry struct {
	Window WindowEntry `yaml:"window"`
	Label  types.Label `yaml:"label"`
	Error  string      `yaml:"error,omitempty"`
}

// PaperEntry is one input record in papers.yaml, with where it ended up.
type PaperEntry struct {
	DOI           string           `yaml:"doi"`
	Title         string           `yaml:"title,omitempty"`
	CitationCount int              `yaml:"citation_count"`
	State         types.PaperState `yaml:"state"`
	SkipReason    types.SkipReason `yaml:"skip_reason,omitempty"`
	Detail        string           `yaml:"detail,omitempty"`
	Source        string           `yaml:"source,omitempty"`
	Windows       int              `yaml:"windows"`

	// Key is set when the record repeats an earlier DOI; its windows are
	// filed under this key instead of the DOI.
	Key string `yaml:"key,omitempty"`
}

// Export writes the stored outcomes to the output directory:
// relevance.yaml maps each DOI to its windows, classification.yaml maps
// each DOI to its labelled windows, and papers.yaml lists every record.
// A record repeating an earlier DOI is filed under "DOI#position", its
// zero-based input position. Files are replaced atomically so a reader
// never sees a partial file.
func (s *Store) Export(ctx context.Context) error {
	idxs, outcomes, err := s.indexedOutcomes(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	relevance := make(map[string][]WindowEntry)
	labels := make(map[string][]LabelEntry)
	papers := make([]PaperEntry, 0, len(outcomes))
	seen := make(map[string]bool, len(outcomes))
	for n, o := range outcomes {
		key := o.Record.DOI
		if seen[key] {
			key = fmt.Sprintf("%s#%d", o.Record.DOI, idxs[n])
		}
		seen[o.Record.DOI] = true

		entry := PaperEntry{
			DOI:           o.Record.DOI,
			Title:         o.Record.Title,
			CitationCount: o.Record.CitationCount,
			State:         o.State,
			SkipReason:    o.SkipReason,
			Detail:        o.Detail,
			Source:        o.Source,
			Windows:       len(o.Windows),
		}
		if key != o.Record.DOI {
			entry.Key = key
		}
		papers = append(papers, entry)
		if len(o.Windows) == 0 {
			continue
		}
		for _, w := range o.Windows {
			relevance[key] = append(relevance[key], NewWindowEntry(w))
		}
		for _, c := range o.Classifications {
			labels[key] = append(labels[key], LabelEntry{Window: NewWindowEntry(c.Window), Label: c.Label, Error: c.Error})
		}
	}

	for name, v := range map[string]any{
		RelevanceFile:      relevance,
		ClassificationFile: labels,
		PapersFile:         papers,
	} {
		if err := writeYAML(filepath.Join(s.dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

// NewWindowEntry converts a context window to its artifact form.
func NewWindowEntry(w types.ContextWindow) WindowEntry {
	return WindowEntry{Start: w.Start, End: w.End, Text: w.Text, Terms: w.Terms}
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return fsutil.WriteFileAtomic(path, data)
}

// ReadRelevance loads a relevance.yaml file.
func ReadRelevance(path string) (map[string][]WindowEntry, error) {
	var m map[string][]WindowEntry
	if err := readYAML(path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadClassification loads a classification.yaml file.
func ReadClassification(path string) (map[string][]LabelEntry, error) {
	var m map[string][]LabelEntry
	if err := readYAML(path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
