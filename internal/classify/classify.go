// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify labels context windows by whether they report a
// significant statistical test result. The verdict comes from a
// Generative AI model; OpenAI chat models and Claude are supported.
package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// ErrUnparsable is returned when the model's reply names no label.
var ErrUnparsable = errors.New("unparsable classifier reply")

// defaultTimeout bounds one classification call when none is configured.
const defaultTimeout = 2 * time.Minute

// Classifier labels one snippet of paper text.
type Classifier interface {
	Classify(ctx context.Context, snippet string) (types.Label, error)
}

// New returns the backend for cfg.Model: models named claude-* go to the
// Anthropic Messages API, everything else to OpenAI chat completions.
func New(cfg types.AIConfig) (Classifier, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("classifier model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for classifier model %s", cfg.Model)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	if IsClaudeModel(cfg.Model) {
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, MaxRetries: cfg.MaxRetries}, nil
	}
	return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, MaxRetries: cfg.MaxRetries}, nil
}

// IsClaudeModel reports whether model is served by the Anthropic API.
func IsClaudeModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "claude")
}

// significancePromptTmpl asks for a one-word verdict on one excerpt.
var significancePromptTmpl = template.Must(template.New("significance").Parse(`You check excerpts of academic papers for explicit statistical significance test results with a clear outcome.

Answer with exactly one word:
- true: the excerpt explicitly reports a significant test result (e.g. p < 0.05, "a significant difference").
- false: the excerpt explicitly reports a non-significant test result (e.g. p > 0.05, "no significant difference").
- null: no clear significance test result is reported, or the outcome is ambiguous.

Do not include any other text.

Excerpt:
{{.Snippet}}
`))

func renderPrompt(snippet string) (string, error) {
	var buf bytes.Buffer
	if err := significancePromptTmpl.Execute(&buf, struct{ Snippet string }{Snippet: snippet}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// replyLabels maps normalized replies to labels.
var replyLabels = map[string]types.Label{
	"true":            types.LabelSignificant,
	"significant":     types.LabelSignificant,
	"false":           types.LabelNotSignificant,
	"not significant": types.LabelNotSignificant,
	"not_significant": types.LabelNotSignificant,
	"non-significant": types.LabelNotSignificant,
	"nonsignificant":  types.LabelNotSignificant,
	"null":            types.LabelIndeterminate,
	"none":            types.LabelIndeterminate,
	"unclear":         types.LabelIndeterminate,
	"indeterminate":   types.LabelIndeterminate,
}

// ParseLabel reads a model reply. Case, surrounding quotes, code fences,
// and trailing punctuation are ignored; so is anything after the first
// line.
func ParseLabel(reply string) (types.Label, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.Trim(s, " \t`'\".,;:!*"))
	if l, ok := replyLabels[s]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnparsable, truncate(reply, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
