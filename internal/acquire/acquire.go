// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire resolves a DOI to PDF bytes through an ordered chain of
// acquisition strategies: open-access lookups first, a mirror last.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/significance-miner/internal/fsutil"
	"github.com/pdiddy/significance-miner/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"

	defaultMaxPDFBytes = 64 << 20
)

// Strategy is one way of obtaining a PDF for a DOI. Attempt performs at most
// a lookup and a fetch and never retries.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, doi string) types.AcquisitionResult
}

// Chain tries its strategies in order and stops at the first success.
type Chain struct {
	strategies []Strategy
	papersDir  string
	logger     *slog.Logger
}

// NewChain builds the strategies named in cfg.Strategies (or
// types.DefaultStrategies) in that order. The mirror strategy is skipped
// with a warning when no mirror URL is configured.
func NewChain(client *http.Client, cfg types.AcquisitionConfig, logger *slog.Logger) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := newFetcher(client, cfg)

	names := cfg.Strategies
	if len(names) == 0 {
		names = types.DefaultStrategies
	}

	var strategies []Strategy
	for _, name := range names {
		switch name {
		case types.StrategyUnpaywall:
			strategies = append(strategies, &Unpaywall{fetch: f, email: cfg.Email})
		case types.StrategyOpenAlex:
			strategies = append(strategies, &OpenAlex{fetch: f, email: cfg.Email})
		case types.StrategyMirror:
			if cfg.MirrorURL == "" {
				logger.Warn("mirror strategy configured without mirror_url; skipping")
				continue
			}
			strategies = append(strategies, &Mirror{fetch: f, baseURL: cfg.MirrorURL})
		}
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no usable acquisition strategies in %v", names)
	}

	c := NewChainOf(strategies...)
	c.papersDir = cfg.PapersDir
	c.logger = logger
	return c, nil
}

// NewChainOf builds a chain from explicit strategies, without caching.
func NewChainOf(strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// Strategies returns the strategy names in evaluation order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the first successful strategy result for doi. When every
// strategy fails the reported reason follows failureRank: network failures
// only surface when nothing else was learned about the paper.
func (c *Chain) Resolve(ctx context.Context, doi string) types.AcquisitionResult {
	if res, ok := c.cached(doi); ok {
		c.logger.Debug("pdf served from cache", "doi", doi)
		return res
	}

	var failures []types.AcquisitionResult
	for _, s := range c.strategies {
		res := s.Attempt(ctx, doi)
		if res.OK() {
			c.logger.Debug("strategy succeeded", "doi", doi, "strategy", s.Name(), "bytes", len(res.PDF))
			c.store(doi, res)
			return res
		}
		c.logger.Debug("strategy failed", "doi", doi, "strategy", s.Name(), "reason", res.Reason, "err", res.Err)
		failures = append(failures, res)
		if ctx.Err() != nil {
			break
		}
	}
	return aggregate(failures)
}

// failureRank orders non-network failures by how much they tell the operator.
var failureRank = map[types.FailureReason]int{
	types.FailureNotFound:   1,
	types.FailureParseError: 2,
	types.FailurePaywalled:  3,
}

func aggregate(failures []types.AcquisitionResult) types.AcquisitionResult {
	if len(failures) == 0 {
		return types.Failure(types.FailureNotFound, ErrNotFound)
	}

	errs := make([]error, 0, len(failures))
	best := -1
	for i, f := range failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
		if f.Reason == types.FailureNetworkError {
			continue
		}
		if best < 0 || failureRank[f.Reason] > failureRank[failures[best].Reason] {
			best = i
		}
	}

	joined := errors.Join(errs...)
	if best < 0 {
		return types.Failure(types.FailureNetworkError, joined)
	}
	return types.Failure(failures[best].Reason, joined)
}

// cached returns a previously downloaded PDF for doi, if caching is enabled.
func (c *Chain) cached(doi string) (types.AcquisitionResult, bool) {
	if c.papersDir == "" {
		return types.AcquisitionResult{}, false
	}
	path := PDFPath(c.papersDir, doi)
	data, err := os.ReadFile(path)
	if err != nil || !HasPDFSignature(data) {
		return types.AcquisitionResult{}, false
	}
	return types.Success(data, types.SourceCache, path), true
}

// store writes a fresh download to the cache. Failures are logged, not
// returned: the bytes are already in memory and the paper can proceed.
func (c *Chain) store(doi string, res types.AcquisitionResult) {
	if c.papersDir == "" {
		return
	}
	if err := fsutil.WriteFileAtomic(PDFPath(c.papersDir, doi), res.PDF); err != nil {
		c.logger.Warn("caching pdf", "doi", doi, "err", err)
	}
}

// PDFPath returns the cache location of a DOI's PDF under papersDir.
func PDFPath(papersDir, doi string) string {
	return filepath.Join(papersDir, rawDir, Slug(doi)+".pdf")
}

// WriteMetadata records where a paper came from next to its cached PDF. A
// result served from the cache leaves existing metadata alone so the
// original download URL is kept.
func WriteMetadata(papersDir string, rec types.PaperRecord, res types.AcquisitionResult) error {
	path := filepath.Join(papersDir, metadataDir, Slug(rec.DOI)+".yaml")
	if res.Source == types.SourceCache {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	meta := types.PaperMeta{
		DOI:           rec.DOI,
		Title:         rec.Title,
		CitationCount: rec.CitationCount,
		SourceURL:     res.URL,
		Source:        res.Source,
		PDFPath:       PDFPath(papersDir, rec.DOI),
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data)
}

// ReadMetadata reads a metadata record written by WriteMetadata.
func ReadMetadata(papersDir, doi string) (*types.PaperMeta, error) {
	data, err := os.ReadFile(filepath.Join(papersDir, metadataDir, Slug(doi)+".yaml"))
	if err != nil {
		return nil, err
	}
	var meta types.PaperMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// statusError reports a non-2xx HTTP response.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.code, e.url)
}

func (e *statusError) Unwrap() error { return ErrNetwork }

// fetcher performs single bounded GET requests.
type fetcher struct {
	client   *http.Client
	cfg      types.HTTPConfig
	maxBytes int64
}

func newFetcher(client *http.Client, cfg types.AcquisitionConfig) *fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	maxBytes := cfg.MaxPDFBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPDFBytes
	}
	return &fetcher{client: client, cfg: cfg.HTTPConfig, maxBytes: maxBytes}
}

// get fetches url and returns the body. A transport error, a timeout, or a
// non-2xx status is wrapped in ErrNetwork; statusError carries the code.
func (f *fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrNetwork, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &statusError{code: resp.StatusCode, url: url}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from %s: %v", ErrNetwork, url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body from %s exceeds %d bytes", ErrNetwork, url, f.maxBytes)
	}
	return data, nil
}

// fetchPDF downloads url and checks the PDF signature.
func (f *fetcher) fetchPDF(ctx context.Context, source, url string) types.AcquisitionResult {
	data, err := f.get(ctx, url, "application/pdf")
	if err != nil {
		return types.Failure(types.FailureNetworkError, fmt.Errorf("%s: %w", source, err))
	}
	if !HasPDFSignature(data) {
		return types.Failure(types.FailureParseError, fmt.Errorf("%s: %w (%s)", source, ErrNotPDF, url))
	}
	return types.Success(data, source, url)
}

// isStatus reports whether err is a statusError with the given code.
func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}
