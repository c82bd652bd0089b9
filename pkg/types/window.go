// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// TermSeparator splits a composite search term into its parts. It is
// reserved: a part can never contain it.
const TermSeparator = "+"

// SearchTerm is either a simple substring or a composite of substrings that
// must co-occur within a bounded span (loose match).
type SearchTerm struct {
	// Raw is the term as configured, e.g. "p-value" or "significance+test".
	Raw string `json:"raw" yaml:"raw"`

	// Parts holds the substrings; a simple term has exactly one.
	Parts []string `json:"parts" yaml:"parts"`
}

// ParseSearchTerm splits raw on TermSeparator. Parts are trimmed of
// surrounding whitespace; an empty part is an error.
func ParseSearchTerm(raw string) (SearchTerm, error) {
	if strings.TrimSpace(raw) == "" {
		return SearchTerm{}, fmt.Errorf("empty search term")
	}
	fields := strings.Split(raw, TermSeparator)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return SearchTerm{}, fmt.Errorf("search term %q has an empty part", raw)
		}
		parts = append(parts, f)
	}
	return SearchTerm{Raw: raw, Parts: parts}, nil
}

// ParseSearchTerms parses every configured term, failing on the first bad one.
func ParseSearchTerms(raws []string) ([]SearchTerm, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("no search terms configured")
	}
	terms := make([]SearchTerm, 0, len(raws))
	for _, r := range raws {
		t, err := ParseSearchTerm(r)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// Composite reports whether the term is a loose-match term.
func (t SearchTerm) Composite() bool {
	return len(t.Parts) > 1
}

func (t SearchTerm) String() string { return t.Raw }

// ContextWindow is a span of paper text surrounding one or more matches.
// Start and End are byte offsets into the converted text, End exclusive.
type ContextWindow struct {
	SourceDOI string `json:"doi" yaml:"doi"`
	Start     int    `json:"start" yaml:"start"`
	End       int    `json:"end" yaml:"end"`
	Text      string `json:"text" yaml:"text"`

	// Terms lists the raw search terms matched inside the span, in the order
	// they were first seen in the document.
	Terms []string `json:"terms" yaml:"terms"`
}

// Len returns the window length in bytes.
func (w ContextWindow) Len() int { return w.End - w.Start }

// Label is the classifier verdict for one window.
type Label string

const (
	LabelSignificant    Label = "significant"
	LabelNotSignificant Label = "not_significant"
	LabelIndeterminate  Label = "indeterminate"
)

// Labels lists every label in report order.
var Labels = []Label{LabelSignificant, LabelNotSignificant, LabelIndeterminate}

// Classification pairs a window with its label.
type Classification struct {
	Window ContextWindow `json:"window" yaml:"window"`
	Label  Label         `json:"label" yaml:"label"`

	// Error holds the classifier error when Label was forced to indeterminate.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
