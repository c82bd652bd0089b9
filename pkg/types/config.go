// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds every single outbound request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Acquisition strategy names accepted in AcquisitionConfig.Strategies.
const (
	StrategyUnpaywall = "unpaywall"
	StrategyOpenAlex  = "openalex"
	StrategyMirror    = "mirror"
)

// SourceCache is the AcquisitionResult source of a PDF read back from the
// papers directory instead of downloaded.
const SourceCache = "cache"

// DefaultStrategies is the fallback order used when none is configured.
var DefaultStrategies = []string{StrategyUnpaywall, StrategyMirror}

// AcquisitionConfig holds settings for the resolver chain.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Strategies is the ordered list of acquisition strategies.
	Strategies []string `json:"strategies" yaml:"strategies"`

	// Email identifies the caller to the open-access APIs (required by Unpaywall).
	Email string `json:"email" yaml:"email"`

	// MirrorURL is the base URL of the mirror used as last resort. The
	// mirror strategy is disabled when empty.
	MirrorURL string `json:"mirror_url" yaml:"mirror_url"`

	// MaxPDFBytes caps the size of a single download (default 64 MiB).
	MaxPDFBytes int64 `json:"max_pdf_bytes" yaml:"max_pdf_bytes"`

	// DownloadDelay is the minimum spacing between consecutive papers (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// PapersDir caches PDFs (raw/) and metadata (metadata/). Caching is
	// disabled when empty.
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`
}

// ConversionBackend identifies the PDF conversion tool.
type ConversionBackend string

const (
	BackendPDFCPU     ConversionBackend = "pdfcpu"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects the conversion tool: pdfcpu or markitdown.
	Backend ConversionBackend `json:"backend" yaml:"backend"`
}

// MatchConfig holds the keyword matching settings.
type MatchConfig struct {
	// SearchTerms are the configured terms; "a+b" denotes a loose match.
	SearchTerms []string `json:"search_terms" yaml:"search_terms"`

	// ContextLength is the number of bytes kept on each side of a match.
	ContextLength int `json:"context_length" yaml:"context_length"`

	// LooseMatchWindow bounds the span in which composite parts must co-occur.
	LooseMatchWindow int `json:"loose_match_window" yaml:"loose_match_window"`

	// CaseSensitive disables case folding when true.
	CaseSensitive bool `json:"case_sensitive" yaml:"case_sensitive"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gpt-4o").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single classification call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RunConfig groups everything a pipeline run needs. It replaces any
// process-wide configuration: the orchestrator reads nothing else.
type RunConfig struct {
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Conversion  ConversionConfig  `json:"conversion" yaml:"conversion"`
	Match       MatchConfig       `json:"match" yaml:"match"`
	Classifier  AIConfig          `json:"classifier" yaml:"classifier"`

	// OutputDir receives relevance.yaml, classification.yaml, and results.db.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Workers is the number of papers processed concurrently (default 1).
	Workers int `json:"workers" yaml:"workers"`
}

// Validate reports the first configuration error. A run must not start
// when Validate fails.
func (c RunConfig) Validate() error {
	if _, err := ParseSearchTerms(c.Match.SearchTerms); err != nil {
		return err
	}
	if c.Match.ContextLength <= 0 {
		return fmt.Errorf("context_length must be positive, got %d", c.Match.ContextLength)
	}
	if c.Match.LooseMatchWindow <= 0 {
		return fmt.Errorf("loose_match_window must be positive, got %d", c.Match.LooseMatchWindow)
	}
	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier model is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return c.Acquisition.Validate()
}

// Validate checks the strategy list.
func (c AcquisitionConfig) Validate() error {
	for _, s := range c.Strategies {
		switch s {
		case StrategyUnpaywall, StrategyOpenAlex, StrategyMirror:
		default:
			return fmt.Errorf("unknown acquisition strategy %q", s)
		}
	}
	return nil
}
