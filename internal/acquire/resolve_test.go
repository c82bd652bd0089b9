// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"
	"testing"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare", "10.1145/1234567.1234568", "10.1145/1234567.1234568", false},
		{"nature", "10.1038/s41586-024-07487-w", "10.1038/s41586-024-07487-w", false},
		{"whitespace trimmed", "  10.1000/xyz  ", "10.1000/xyz", false},
		{"resolver prefix", "https://doi.org/10.1000/xyz", "10.1000/xyz", false},
		{"dx resolver upper case", "HTTPS://DX.DOI.ORG/10.1000/xyz", "10.1000/xyz", false},
		{"doi scheme", "doi:10.1000/xyz", "10.1000/xyz", false},
		{"empty", "", "", true},
		{"no suffix", "10.1000/", "", true},
		{"not a doi", "2301.07041", "", true},
		{"embedded space", "10.1000/a b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDOI(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDOI(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		doi  string
		want string
	}{
		{"10.1145/1234567.1234568", "10.1145%2F1234567.1234568"},
		{"10.1002/(SICI)1097-0258:AID", "10.1002%2F%28sici%291097-0258%3Aaid"},
		{"10.1000/a/b/c", "10.1000%2Fa%2Fb%2Fc"},
	}
	for _, tt := range tests {
		if got := Slug(tt.doi); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.doi, got, tt.want)
		}
	}
}

func TestSlug_CaseAndCollisions(t *testing.T) {
	if Slug("10.1000/ABC") != Slug("10.1000/abc") {
		t.Errorf("Slug is case-sensitive: %q vs %q", Slug("10.1000/ABC"), Slug("10.1000/abc"))
	}

	distinct := []string{"10.1/a-b", "10.1/a/b", "10.1/a:b", "10.1/a%2Fb", "10.1/a b", "10.1/a_b"}
	seen := map[string]string{}
	for _, doi := range distinct {
		s := Slug(doi)
		if prev, ok := seen[s]; ok {
			t.Errorf("Slug(%q) = Slug(%q) = %q", doi, prev, s)
		}
		seen[s] = doi
		if strings.ContainsAny(s, `/\:`) {
			t.Errorf("Slug(%q) = %q contains a path separator", doi, s)
		}
	}
}

func TestHasPDFSignature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain header", []byte("%PDF-1.7\n..."), true},
		{"leading junk", append([]byte("\xef\xbb\xbf\r\n"), []byte("%PDF-1.4")...), true},
		{"html", []byte("<!DOCTYPE html><html>"), false},
		{"empty", nil, false},
		{"header too late", []byte(strings.Repeat(" ", 2048) + "%PDF-1.4"), false},
		{"truncated magic", []byte("%PDF"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPDFSignature(tt.data); got != tt.want {
				t.Errorf("HasPDFSignature(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}
