// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// Unpaywall looks a DOI up in the Unpaywall database and fetches the
// open-access PDF it points to.
type Unpaywall struct {
	fetch *fetcher
	email string
}

// unpaywallResponse captures the fields we need from an Unpaywall record.
type unpaywallResponse struct {
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URL               string `json:"url"`
	URLForPDF         string `json:"url_for_pdf"`
	PDFURL            string `json:"pdf_url"`
	URLForLandingPage string `json:"url_for_landing_page"`
}

func (l unpaywallLocation) pdf() string {
	if l.URLForPDF != "" {
		return l.URLForPDF
	}
	return l.PDFURL
}

func (u *Unpaywall) Name() string { return types.StrategyUnpaywall }

// Attempt queries Unpaywall. A record with is_oa=false ends the strategy
// without a fetch. The best location is preferred; other OA locations are
// scanned when it has no PDF link.
func (u *Unpaywall) Attempt(ctx context.Context, doi string) types.AcquisitionResult {
	apiURL := unpaywallAPIBase + doi
	if u.email != "" {
		apiURL += "?email=" + url.QueryEscape(u.email)
	}

	body, err := u.fetch.get(ctx, apiURL, "application/json")
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return types.Failure(types.FailureNotFound, fmt.Errorf("unpaywall: %w: %s", ErrNotFound, doi))
		}
		return types.Failure(types.FailureNetworkError, fmt.Errorf("unpaywall: %w", err))
	}

	var rec unpaywallResponse
	if err := json.Unmarshal(body, &rec); err != nil {
		return types.Failure(types.FailureNetworkError, fmt.Errorf("unpaywall: %w: parsing response: %v", ErrNetwork, err))
	}

	if !rec.IsOA {
		return types.Failure(types.FailureNotFound, fmt.Errorf("unpaywall: %w: %s is not open access", ErrNotFound, doi))
	}

	pdfURL := ""
	if rec.BestOALocation != nil {
		pdfURL = rec.BestOALocation.pdf()
	}
	if pdfURL == "" {
		for _, loc := range rec.OALocations {
			if p := loc.pdf(); p != "" {
				pdfURL = p
				break
			}
		}
	}
	if pdfURL == "" {
		return types.Failure(types.FailurePaywalled, fmt.Errorf("unpaywall: %w: %s", ErrPaywalled, doi))
	}

	return u.fetch.fetchPDF(ctx, u.Name(), pdfURL)
}
