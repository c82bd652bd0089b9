// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the significance-miner
// pipeline: input records, acquisition results, search terms, context
// windows, classification labels, and run reports.
package types

import "fmt"

// PaperRecord is one row of input metadata. It is never modified after
// ingestion.
type PaperRecord struct {
	// DOI is the paper identifier used for acquisition (e.g. "10.1038/nature12345").
	DOI string `json:"doi" yaml:"doi"`

	// Title is the paper title as given by the metadata export.
	Title string `json:"title" yaml:"title"`

	// CitationCount is the citation count from the metadata export.
	CitationCount int `json:"citation_count" yaml:"citation_count"`
}

// FailureReason classifies why acquisition did not produce a PDF.
type FailureReason string

const (
	FailureNotFound     FailureReason = "not_found"
	FailurePaywalled    FailureReason = "paywalled"
	FailureNetworkError FailureReason = "network_error"
	FailureParseError   FailureReason = "parse_error"
)

// AcquisitionResult is either a success carrying PDF bytes or a failure
// carrying a reason. Exactly one of PDF or Reason is set.
type AcquisitionResult struct {
	// PDF holds the downloaded document. Nil on failure.
	PDF []byte

	// Source names the strategy that produced the PDF (e.g. "unpaywall", "mirror", "cache").
	Source string

	// URL is the location the PDF was fetched from.
	URL string

	// Reason is set on failure.
	Reason FailureReason

	// Err carries the underlying error for a failure, if any.
	Err error
}

// Success builds a successful AcquisitionResult.
func Success(pdf []byte, source, url string) AcquisitionResult {
	return AcquisitionResult{PDF: pdf, Source: source, URL: url}
}

// Failure builds a failed AcquisitionResult.
func Failure(reason FailureReason, err error) AcquisitionResult {
	return AcquisitionResult{Reason: reason, Err: err}
}

// OK reports whether the result carries a PDF.
func (r AcquisitionResult) OK() bool {
	return r.Reason == "" && r.PDF != nil
}

func (r AcquisitionResult) String() string {
	if r.OK() {
		return fmt.Sprintf("success(%s, %d bytes)", r.Source, len(r.PDF))
	}
	if r.Err != nil {
		return fmt.Sprintf("failure(%s: %v)", r.Reason, r.Err)
	}
	return fmt.Sprintf("failure(%s)", r.Reason)
}

// PaperMeta is the metadata record written next to a cached PDF.
type PaperMeta struct {
	DOI           string `json:"doi" yaml:"doi"`
	Title         string `json:"title" yaml:"title"`
	CitationCount int    `json:"citation_count" yaml:"citation_count"`
	SourceURL     string `json:"source_url" yaml:"source_url"`
	Source        string `json:"source" yaml:"source"`
	PDFPath       string `json:"pdf_path" yaml:"pdf_path"`
}
