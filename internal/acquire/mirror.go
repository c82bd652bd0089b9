// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// Mirror scrapes a mirror's result page for the DOI and fetches the PDF
// linked from it. It is the last resort of the chain.
type Mirror struct {
	fetch   *fetcher
	baseURL string
}

func (m *Mirror) Name() string { return types.StrategyMirror }

// Attempt fetches {baseURL}/{doi}. A page that loads but carries no PDF
// link is reported as paywalled.
func (m *Mirror) Attempt(ctx context.Context, doi string) types.AcquisitionResult {
	pageURL := strings.TrimRight(m.baseURL, "/") + "/" + doi

	body, err := m.fetch.get(ctx, pageURL, "text/html")
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return types.Failure(types.FailureNotFound, fmt.Errorf("mirror: %w: %s", ErrNotFound, doi))
		}
		return types.Failure(types.FailureNetworkError, fmt.Errorf("mirror: %w", err))
	}

	// Some mirrors answer with the PDF itself.
	if HasPDFSignature(body) {
		return types.Success(body, m.Name(), pageURL)
	}

	link, err := findPDFLink(body, pageURL)
	if err != nil {
		return types.Failure(types.FailurePaywalled, fmt.Errorf("mirror: %w: %v", ErrPaywalled, err))
	}
	return m.fetch.fetchPDF(ctx, m.Name(), link)
}

// findPDFLink parses a mirror page and returns the absolute URL of the
// document it offers. It looks, in document order, at download buttons
// (onclick="location.href='...'"), embed and iframe viewers, and finally at
// anchors whose target ends in .pdf.
func findPDFLink(page []byte, pageURL string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing mirror page: %w", err)
	}

	var primary, anchor string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if primary != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Button:
				if v := onclickTarget(attr(n, "onclick")); v != "" {
					primary = v
					return
				}
			case atom.Embed, atom.Iframe:
				if v := attr(n, "src"); v != "" {
					primary = v
					return
				}
			case atom.A:
				href := attr(n, "href")
				if anchor == "" && isPDFPath(href) {
					anchor = href
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	link := primary
	if link == "" {
		link = anchor
	}
	if link == "" {
		return "", fmt.Errorf("no PDF link on %s", pageURL)
	}
	return absoluteURL(link, pageURL)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// onclickTarget extracts the quoted URL from handlers like
// location.href='//host/file.pdf?download=true'.
func onclickTarget(onclick string) string {
	start := strings.IndexAny(onclick, `'"`)
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(onclick, `'"`)
	if end <= start {
		return ""
	}
	return strings.TrimSpace(onclick[start+1 : end])
}

func isPDFPath(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// absoluteURL resolves link against pageURL. Protocol-relative links get https.
func absoluteURL(link, pageURL string) (string, error) {
	if strings.HasPrefix(link, "//") {
		return "https:" + link, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing link %q: %w", link, err)
	}
	return base.ResolveReference(ref).String(), nil
}
