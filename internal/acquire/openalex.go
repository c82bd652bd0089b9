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

// OpenAlex resolves a DOI through the OpenAlex works endpoint and fetches
// the best open-access PDF.
type OpenAlex struct {
	fetch *fetcher
	email string
}

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

// openAlexLocation represents an open-access location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

func (o *OpenAlex) Name() string { return types.StrategyOpenAlex }

// Attempt queries OpenAlex for doi. A work without an OA location is
// reported as not found; one with only a landing page as paywalled.
func (o *OpenAlex) Attempt(ctx context.Context, doi string) types.AcquisitionResult {
	apiURL := openAlexAPIBase + "https://doi.org/" + doi
	if o.email != "" {
		apiURL += "?mailto=" + url.QueryEscape(o.email)
	}

	body, err := o.fetch.get(ctx, apiURL, "application/json")
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return types.Failure(types.FailureNotFound, fmt.Errorf("openalex: %w: %s", ErrNotFound, doi))
		}
		return types.Failure(types.FailureNetworkError, fmt.Errorf("openalex: %w", err))
	}

	var oa openAlexResponse
	if err := json.Unmarshal(body, &oa); err != nil {
		return types.Failure(types.FailureNetworkError, fmt.Errorf("openalex: %w: parsing response: %v", ErrNetwork, err))
	}

	if oa.BestOALocation == nil {
		return types.Failure(types.FailureNotFound, fmt.Errorf("openalex: %w: %s has no OA location", ErrNotFound, doi))
	}
	if oa.BestOALocation.PDFURL == "" {
		return types.Failure(types.FailurePaywalled, fmt.Errorf("openalex: %w: %s", ErrPaywalled, doi))
	}

	return o.fetch.fetchPDF(ctx, o.Name(), oa.BestOALocation.PDFURL)
}
