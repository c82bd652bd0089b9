// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"log/slog"

	"github.com/pdiddy/significance-miner/internal/acquire"
	"github.com/pdiddy/significance-miner/internal/convert"
	"github.com/pdiddy/significance-miner/internal/match"
	"github.com/pdiddy/significance-miner/pkg/types"
)

// paper tracks one record through the state machine.
type paper struct {
	out    types.PaperOutcome
	logger *slog.Logger
}

func (p *paper) enter(s types.PaperState) {
	p.logger.Debug("paper transition", "from", p.out.State, "to", s)
	p.out.State = s
}

func (p *paper) skip(reason types.SkipReason, detail string) types.PaperOutcome {
	p.enter(types.StateSkipped)
	p.out.SkipReason = reason
	p.out.Detail = detail
	p.out.Windows = nil
	p.out.Classifications = nil
	return p.out
}

func (p *paper) interrupt(ctx context.Context) types.PaperOutcome {
	return p.skip(types.SkipInterrupted, context.Cause(ctx).Error())
}

// process runs one record to a terminal state.
func (o *Orchestrator) process(ctx context.Context, idx int, rec types.PaperRecord) types.PaperOutcome {
	p := &paper{
		out:    types.PaperOutcome{Record: rec, State: types.StatePending},
		logger: o.deps.Logger.With("idx", idx, "doi", rec.DOI),
	}

	doi, err := acquire.NormalizeDOI(rec.DOI)
	if err != nil {
		return p.skip(types.SkipInvalidRecord, err.Error())
	}
	p.out.Record.DOI = doi
	if ctx.Err() != nil {
		return p.interrupt(ctx)
	}

	p.enter(types.StateResolving)
	res := o.deps.Resolver.Resolve(ctx, doi)
	if !res.OK() {
		if ctx.Err() != nil {
			return p.interrupt(ctx)
		}
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		return p.skip(types.SkipReasonFor(res.Reason), detail)
	}
	p.out.Source = res.Source

	papersDir := o.cfg.Acquisition.PapersDir
	textPath := ""
	if papersDir != "" {
		if err := acquire.WriteMetadata(papersDir, p.out.Record, res); err != nil {
			p.logger.Warn("writing metadata", "err", err)
		}
		textPath = convert.TextPath(papersDir, acquire.Slug(doi))
	}

	p.enter(types.StateConverting)
	text, cached, err := convert.ConvertCached(ctx, o.deps.Converter, textPath, res.PDF)
	if err != nil {
		if ctx.Err() != nil {
			return p.interrupt(ctx)
		}
		return p.skip(types.SkipParseError, err.Error())
	}
	p.logger.Debug("text ready", "bytes", len(text), "cached", cached)

	p.enter(types.StateMatching)
	windows := match.FindWindows(doi, text, o.terms, o.opts)
	if len(windows) == 0 {
		p.enter(types.StateNoContent)
		return p.out
	}
	p.out.Windows = windows

	p.enter(types.StateClassifying)
	p.out.Classifications = make([]types.Classification, 0, len(windows))
	for _, w := range windows {
		if ctx.Err() != nil {
			return p.interrupt(ctx)
		}
		c := types.Classification{Window: w}
		label, err := o.deps.Classifier.Classify(ctx, w.Text)
		if err != nil {
			if ctx.Err() != nil {
				return p.interrupt(ctx)
			}
			p.logger.Warn("classifying window", "start", w.Start, "err", err)
			label = types.LabelIndeterminate
			c.Error = err.Error()
		}
		c.Label = label
		p.out.Classifications = append(p.out.Classifications, c)
	}

	p.enter(types.StateDone)
	return p.out
}
