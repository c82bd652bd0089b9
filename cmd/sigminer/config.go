// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/significance-miner/internal/secrets"
	"github.com/pdiddy/significance-miner/pkg/types"
)

const defaultUserAgent = "sigminer/0.1"

var defaultSearchTerms = []string{"p-value", "statistical+significance", "significance+test"}

// Configuration keys. Each is settable in sigminer.yaml, as SIGMINER_<KEY>
// in the environment, or by the flag of the same name with dashes.
const (
	keySearchTerms      = "search_terms"
	keyContextLength    = "context_length"
	keyLooseMatchWindow = "loose_match_window"
	keyCaseSensitive    = "case_sensitive"
	keyModel            = "classifier_model"
	keyAPIKey           = "api_key"
	keyMaxRetries       = "max_retries"
	keyClassifyTimeout  = "classifier_timeout"
	keyStrategies       = "strategies"
	keyEmail            = "email"
	keyMirrorURL        = "mirror_url"
	keyMaxPDFBytes      = "max_pdf_bytes"
	keyDelay            = "download_delay"
	keyTimeout          = "timeout"
	keyUserAgent        = "user_agent"
	keyPapersDir        = "papers_dir"
	keyBackend          = "backend"
	keyOutputDir        = "output_dir"
	keyWorkers          = "workers"
)

func init() {
	viper.SetDefault(keySearchTerms, defaultSearchTerms)
	viper.SetDefault(keyContextLength, 300)
	viper.SetDefault(keyLooseMatchWindow, 100)
	viper.SetDefault(keyModel, "gpt-4o")
	viper.SetDefault(keyMaxRetries, 3)
	viper.SetDefault(keyClassifyTimeout, 2*time.Minute)
	viper.SetDefault(keyStrategies, types.DefaultStrategies)
	viper.SetDefault(keyDelay, time.Second)
	viper.SetDefault(keyTimeout, 60*time.Second)
	viper.SetDefault(keyUserAgent, defaultUserAgent)
	viper.SetDefault(keyPapersDir, "papers")
	viper.SetDefault(keyBackend, string(types.BackendPDFCPU))
	viper.SetDefault(keyOutputDir, "output")
	viper.SetDefault(keyWorkers, 1)
}

// flagName maps a configuration key to its flag name.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// configKeys lists every key that a flag may set.
var configKeys = []string{
	keySearchTerms, keyContextLength, keyLooseMatchWindow, keyCaseSensitive,
	keyModel, keyWorkers, keyStrategies, keyEmail, keyMirrorURL, keyDelay,
	keyTimeout, keyPapersDir, keyBackend, keyOutputDir,
}

// bindFlags binds every flag in fs that names a configuration key. It runs
// for the executing command only, since viper keeps one flag per key.
func bindFlags(fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		if f := fs.Lookup(flagName(key)); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func addAcquisitionFlags(fs *pflag.FlagSet) {
	fs.StringSlice(flagName(keyStrategies), nil, "acquisition strategies in order: unpaywall, openalex, mirror")
	fs.String(flagName(keyEmail), "", "contact email sent to Unpaywall and OpenAlex")
	fs.String(flagName(keyMirrorURL), "", "base URL of the mirror used as last resort")
	fs.Duration(flagName(keyDelay), 0, "minimum spacing between paper downloads (default 1s)")
	fs.Duration(flagName(keyTimeout), 0, "HTTP request timeout (default 60s)")
	fs.String(flagName(keyPapersDir), "", "cache directory for PDFs, text, and metadata (default papers)")
}

func addMatchFlags(fs *pflag.FlagSet) {
	fs.StringSlice(flagName(keySearchTerms), nil, `search terms; "a+b" matches a and b within the loose window`)
	fs.Int(flagName(keyContextLength), 0, "bytes of context kept on each side of a match (default 300)")
	fs.Int(flagName(keyLooseMatchWindow), 0, "span within which composite term parts must co-occur (default 100)")
	fs.Bool(flagName(keyCaseSensitive), false, "match search terms case-sensitively")
	fs.String(flagName(keyBackend), "", "conversion backend: pdfcpu or markitdown (default pdfcpu)")
}

func addClassifierFlags(fs *pflag.FlagSet) {
	fs.String(flagName(keyModel), "", "classifier model; claude-* uses Anthropic, others OpenAI (default gpt-4o)")
	fs.Int(flagName(keyWorkers), 0, "papers processed concurrently (default 1)")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.String(flagName(keyOutputDir), "", "directory for results.db and YAML artifacts (default output)")
}

// runConfig assembles the run configuration from viper and fills missing
// credentials from .secrets/.
func runConfig() types.RunConfig {
	cfg := types.RunConfig{
		Acquisition: types.AcquisitionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration(keyTimeout),
				UserAgent: viper.GetString(keyUserAgent),
			},
			Strategies:    viper.GetStringSlice(keyStrategies),
			Email:         viper.GetString(keyEmail),
			MirrorURL:     viper.GetString(keyMirrorURL),
			MaxPDFBytes:   viper.GetInt64(keyMaxPDFBytes),
			DownloadDelay: viper.GetDuration(keyDelay),
			PapersDir:     viper.GetString(keyPapersDir),
		},
		Conversion: types.ConversionConfig{
			Backend: types.ConversionBackend(viper.GetString(keyBackend)),
		},
		Match: types.MatchConfig{
			SearchTerms:      viper.GetStringSlice(keySearchTerms),
			ContextLength:    viper.GetInt(keyContextLength),
			LooseMatchWindow: viper.GetInt(keyLooseMatchWindow),
			CaseSensitive:    viper.GetBool(keyCaseSensitive),
		},
		Classifier: types.AIConfig{
			Model:      viper.GetString(keyModel),
			APIKey:     viper.GetString(keyAPIKey),
			MaxRetries: viper.GetInt(keyMaxRetries),
			Timeout:    viper.GetDuration(keyClassifyTimeout),
		},
		OutputDir: viper.GetString(keyOutputDir),
		Workers:   viper.GetInt(keyWorkers),
	}
	secrets.Apply(loadedSecrets, &cfg)
	return cfg
}
