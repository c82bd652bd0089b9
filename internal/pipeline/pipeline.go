// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives each input record through acquisition,
// conversion, matching, and classification. A failure in one paper never
// stops the others; every record ends in exactly one terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/significance-miner/internal/classify"
	"github.com/pdiddy/significance-miner/internal/convert"
	"github.com/pdiddy/significance-miner/internal/httputil"
	"github.com/pdiddy/significance-miner/internal/match"
	"github.com/pdiddy/significance-miner/pkg/types"
)

// Resolver turns a normalized DOI into PDF bytes or a failure reason.
type Resolver interface {
	Resolve(ctx context.Context, doi string) types.AcquisitionResult
}

// Store persists outcomes as they complete. *results.Store satisfies it.
type Store interface {
	Reset(ctx context.Context) error
	SavePaper(ctx context.Context, idx int, o types.PaperOutcome) error
	Export(ctx context.Context) error
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Resolver   Resolver
	Converter  convert.Converter
	Classifier classify.Classifier
	Store      Store

	// Out receives one status line per paper. Defaults to io.Discard.
	Out io.Writer

	Logger *slog.Logger
}

// Orchestrator runs the per-paper state machine over a batch of records.
type Orchestrator struct {
	deps    Deps
	cfg     types.RunConfig
	terms   []types.SearchTerm
	opts    match.Options
	limiter *rate.Limiter
	workers int

	// mu serializes persistence and status output across workers.
	mu sync.Mutex

	abortMu sync.Mutex
	abort   context.CancelCauseFunc
}

// ErrAborted is the cause recorded for papers cut short by Abort.
var ErrAborted = errors.New("run aborted")

// New validates cfg and returns an orchestrator ready to Run.
func New(cfg types.RunConfig, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if deps.Resolver == nil || deps.Converter == nil || deps.Classifier == nil || deps.Store == nil {
		return nil, errors.New("resolver, converter, classifier, and store are required")
	}
	terms, err := types.ParseSearchTerms(cfg.Match.SearchTerms)
	if err != nil {
		return nil, err
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		terms:   terms,
		opts:    match.OptionsFrom(cfg.Match),
		limiter: httputil.NewLimiter(cfg.Acquisition.DownloadDelay),
		workers: workers,
	}, nil
}

// Run processes records and returns the report. Outcomes are persisted
// after every paper. The error is non-nil only when the store fails; the
// report is still returned in that case.
//
// Cancelling ctx is checked between papers: papers already started run to
// their terminal state and records not yet started are reported as
// interrupted. Abort cuts the papers in flight short as well.
func (o *Orchestrator) Run(ctx context.Context, records []types.PaperRecord) (types.RunReport, error) {
	persistCtx := context.WithoutCancel(ctx)
	if err := o.deps.Store.Reset(persistCtx); err != nil {
		return types.RunReport{}, fmt.Errorf("resetting results store: %w", err)
	}

	paperCtx, abort := context.WithCancelCause(persistCtx)
	o.setAbort(abort)
	defer func() {
		o.setAbort(nil)
		abort(nil)
	}()

	outcomes := make([]types.PaperOutcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, rec := range records {
		if gctx.Err() != nil || paperCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			var out types.PaperOutcome
			if err := o.limiter.Wait(gctx); err != nil {
				out = interrupted(rec, err)
			} else {
				out = o.process(paperCtx, i, rec)
			}
			outcomes[i] = out
			return o.persist(persistCtx, i, out)
		})
	}
	runErr := g.Wait()

	cause := context.Cause(gctx)
	if cause == nil {
		cause = context.Cause(paperCtx)
	}
	for i, rec := range records {
		if outcomes[i].State != "" {
			continue
		}
		outcomes[i] = interrupted(rec, cause)
		if runErr == nil {
			if err := o.deps.Store.SavePaper(persistCtx, i, outcomes[i]); err != nil {
				runErr = fmt.Errorf("saving paper %d: %w", i, err)
			}
		}
	}

	report := types.NewRunReport(outcomes)
	if runErr != nil {
		return report, runErr
	}
	if err := o.deps.Store.Export(persistCtx); err != nil {
		return report, fmt.Errorf("exporting artifacts: %w", err)
	}
	o.deps.Logger.Info("run finished",
		"done", report.Done, "no_content", report.NoContent, "skipped", report.Skipped)
	return report, nil
}

// Abort cancels the papers in flight of the current run. They end as
// interrupted with ErrAborted. It is a no-op when no run is active.
func (o *Orchestrator) Abort() {
	o.abortMu.Lock()
	defer o.abortMu.Unlock()
	if o.abort != nil {
		o.abort(ErrAborted)
	}
}

func (o *Orchestrator) setAbort(f context.CancelCauseFunc) {
	o.abortMu.Lock()
	o.abort = f
	o.abortMu.Unlock()
}

// persist saves one outcome, rewrites the artifacts, and prints its status.
func (o *Orchestrator) persist(ctx context.Context, idx int, out types.PaperOutcome) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.deps.Store.SavePaper(ctx, idx, out); err != nil {
		return fmt.Errorf("saving paper %d: %w", idx, err)
	}
	if err := o.deps.Store.Export(ctx); err != nil {
		return fmt.Errorf("exporting artifacts: %w", err)
	}
	printStatus(o.deps.Out, out)
	return nil
}

func printStatus(w io.Writer, out types.PaperOutcome) {
	doi := out.Record.DOI
	if doi == "" {
		doi = fmt.Sprintf("(no DOI: %q)", out.Record.Title)
	}
	switch out.State {
	case types.StateDone:
		fmt.Fprintf(w, "done:       %s (%d windows, %s)\n", doi, len(out.Windows), out.Source)
	case types.StateNoContent:
		fmt.Fprintf(w, "no matches: %s\n", doi)
	default:
		if out.Detail != "" {
			fmt.Fprintf(w, "skipped:    %s (%s: %s)\n", doi, out.SkipReason, out.Detail)
		} else {
			fmt.Fprintf(w, "skipped:    %s (%s)\n", doi, out.SkipReason)
		}
	}
}

func interrupted(rec types.PaperRecord, cause error) types.PaperOutcome {
	out := types.PaperOutcome{Record: rec, State: types.StateSkipped, SkipReason: types.SkipInterrupted}
	if cause != nil {
		out.Detail = cause.Error()
	}
	return out
}
