// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Sentinel errors wrapped by strategy failures so callers can use errors.Is.
var (
	ErrNotFound  = errors.New("no open copy found")
	ErrPaywalled = errors.New("landing page without extractable PDF")
	ErrNetwork   = errors.New("network failure")
	ErrNotPDF    = errors.New("response is not a PDF")
)

// Base URLs for the acquisition services. Declared as vars so tests can
// substitute httptest servers.
var (
	unpaywallAPIBase = "https://api.unpaywall.org/v2/"
	openAlexAPIBase  = "https://api.openalex.org/works/"
)

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are stripped before validation, longest first.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI trims whitespace and resolver prefixes from a DOI and
// validates the remainder. DOIs are case-insensitive; the returned form
// keeps the original case so URLs stay readable.
func NormalizeDOI(raw string) (string, error) {
	doi := strings.TrimSpace(raw)
	lower := strings.ToLower(doi)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			doi = doi[len(p):]
			break
		}
	}
	doi = strings.TrimSpace(doi)
	if !doiPattern.MatchString(doi) {
		return "", fmt.Errorf("invalid DOI %q", raw)
	}
	return doi, nil
}

// Slug returns a filesystem-safe filename stem for a DOI. DOIs compare
// case-insensitively, so the stem is lower-cased; the remaining escaping is
// reversible, so distinct DOIs never share a stem.
func Slug(doi string) string {
	return strings.ReplaceAll(url.PathEscape(strings.ToLower(doi)), ":", "%3A")
}

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// pdfHeaderSlack is how far into the file the header may appear. Some
// generators emit leading bytes before it and readers accept them.
const pdfHeaderSlack = 1024

// HasPDFSignature reports whether data looks like a PDF. It checks the file
// header only and does not parse the document.
func HasPDFSignature(data []byte) bool {
	head := data
	if len(head) > pdfHeaderSlack+len(pdfMagic) {
		head = head[:pdfHeaderSlack+len(pdfMagic)]
	}
	return bytes.Contains(head, pdfMagic)
}
