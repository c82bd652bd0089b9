// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDFs into plain text for matching. Two
// backends exist: pdfcpu, which runs in process, and markitdown, which runs
// in a docker or podman container.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/significance-miner/internal/container"
	"github.com/pdiddy/significance-miner/internal/fsutil"
	"github.com/pdiddy/significance-miner/pkg/types"
)

// textDir is the subdirectory under the papers base for converted text.
const textDir = "text"

// ErrNoText is returned when a document converts without error but yields
// no text, as with scanned PDFs that carry only images.
var ErrNoText = errors.New("no text extracted")

// Converter extracts the text of a PDF.
type Converter interface {
	Convert(ctx context.Context, pdf []byte) (string, error)
}

// New returns the converter for the configured backend. The markitdown
// backend needs a working container runtime with the image present.
func New(ctx context.Context, cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case "", types.BackendPDFCPU:
		return NewPDFCPUConverter(), nil
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(ctx, rt)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

// TextPath returns where the converted text of the paper with the given
// file slug is cached.
func TextPath(papersDir, slug string) string {
	return filepath.Join(papersDir, textDir, slug+".txt")
}

// ConvertCached returns the text cached at textPath, or converts pdf and
// writes the result there. An empty textPath disables caching. cached
// reports whether the text came from disk. A failed cache write is logged
// and the text is still returned.
func ConvertCached(ctx context.Context, c Converter, textPath string, pdf []byte) (text string, cached bool, err error) {
	if textPath != "" {
		if data, err := os.ReadFile(textPath); err == nil && len(data) > 0 {
			return string(data), true, nil
		}
	}

	text, err = c.Convert(ctx, pdf)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(text) == "" {
		return "", false, ErrNoText
	}

	if textPath != "" {
		if err := fsutil.WriteFileAtomic(textPath, []byte(text)); err != nil {
			slog.Warn("caching converted text", "path", textPath, "err", err)
		}
	}
	return text, false, nil
}
