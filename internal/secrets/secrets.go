// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// The filename is the key and the trimmed contents are the value.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/significance-miner/internal/classify"
	"github.com/pdiddy/significance-miner/pkg/types"
)

// Key files recognised by Apply.
const (
	OpenAIKey      = "openai-api-key"
	AnthropicKey   = "anthropic-api-key"
	UnpaywallEmail = "unpaywall-email"
)

// DefaultDir is where the CLI looks for secrets.
const DefaultDir = ".secrets/"

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credentials that cfg leaves empty. The classifier key is
// chosen by provider: anthropic-api-key for Claude models, openai-api-key
// otherwise. Values already set in cfg win.
func Apply(s map[string]string, cfg *types.RunConfig) {
	if cfg.Classifier.APIKey == "" {
		key := OpenAIKey
		if classify.IsClaudeModel(cfg.Classifier.Model) {
			key = AnthropicKey
		}
		cfg.Classifier.APIKey = s[key]
	}
	if cfg.Acquisition.Email == "" {
		cfg.Acquisition.Email = s[UnpaywallEmail]
	}
}
