// Package pipeline answers a shopping question in four stages: analyze the
// question, search the web, scrape the best pages and synthesize an answer.
// The Orchestrator sequences the stages over a transition table; the Runner
// is the entry point callers use.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
	"github.com/sells-group/shopping-cli/internal/scrape"
	"github.com/sells-group/shopping-cli/internal/search"
)

// Backends are the remote collaborators a pipeline calls.
type Backends struct {
	Generator llm.Generator
	Searcher  search.Searcher
	Scraper   scrape.Scraper
}

func (b Backends) validate() error {
	switch {
	case b.Generator == nil:
		return eris.New("pipeline: generator is required")
	case b.Searcher == nil:
		return eris.New("pipeline: searcher is required")
	case b.Scraper == nil:
		return eris.New("pipeline: scraper is required")
	}
	return nil
}

// AbortError is returned when a run ends without a final answer.
type AbortError struct {
	Stage model.StageName
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pipeline: aborted at %s: %v", e.Stage, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// ErrBlocked is the cause of an abort when a stage's predecessor did not
// finish.
var ErrBlocked = eris.New("required stage did not complete")

// stageResult is what a stage function reports back to the orchestrator.
type stageResult struct {
	status   model.StageStatus
	degraded bool
	detail   string
	err      error
}

type stageFunc func(ctx context.Context, r *run) stageResult

// blockAction is what happens to a stage whose predecessor is not satisfied.
type blockAction int

const (
	blockSkip blockAction = iota
	blockAbort
)

// transition is one row of the sequencing table.
type transition struct {
	stage     model.StageName
	requires  model.StageName // empty for the first stage
	onBlocked blockAction
	fatal     bool // a failed result aborts the run
	run       stageFunc
}

// transitions returns the fixed stage order. Scrape depends on Search;
// Search and Synthesize depend on Analyze. Only Synthesize is fatal.
func transitions() []transition {
	return []transition{
		{stage: model.StageAnalyze, run: analyzeStage},
		{stage: model.StageSearch, requires: model.StageAnalyze, onBlocked: blockSkip, run: searchStage},
		{stage: model.StageScrape, requires: model.StageSearch, onBlocked: blockSkip, run: scrapeStage},
		{stage: model.StageSynthesize, requires: model.StageAnalyze, onBlocked: blockAbort, fatal: true, run: synthesizeStage},
	}
}

// run carries the per-request collaborators through the stage functions.
type run struct {
	id       string
	state    *model.PipelineState
	profile  config.Profile
	backends Backends
	usage    *usageCounter
	notify   *notifier
	log      *zap.Logger
}

func (r *run) retryConfig(stage model.StageName, operation string) resilience.RetryConfig {
	return resilience.ForOperation(operation, r.profile.RetryMaxAttempts, r.profile.RetryBaseDelay, r.profile.CallTimeout, r.notify.attempts(stage))
}

// generate calls the generator under the retry policy. The call runs on a
// context detached from caller cancellation and bounded per attempt.
func (r *run) generate(ctx context.Context, stage model.StageName, req llm.Request) (*llm.Response, error) {
	req.Stage = string(stage)
	if req.Model == "" {
		req.Model = r.profile.Model
	}
	req.Temperature = r.profile.Temperature

	cfg := r.retryConfig(stage, string(stage)+".generate")
	return resilience.DoVal(context.WithoutCancel(ctx), cfg, func(ctx context.Context) (*llm.Response, error) {
		r.usage.llmCalls.Add(1)
		resp, err := r.backends.Generator.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		r.usage.inputTokens.Add(int64(resp.InputTokens))
		r.usage.outputTokens.Add(int64(resp.OutputTokens))
		return resp, nil
	})
}

// Report summarizes a finished orchestration.
type Report struct {
	Outcome model.Outcome
	Usage   model.Usage
}

// Orchestrator runs the stages for one request against injected backends.
type Orchestrator struct {
	backends    Backends
	profile     config.Profile
	progress    ProgressFunc
	transitions []transition
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// NewOrchestrator creates an Orchestrator for one resolved profile.
func NewOrchestrator(backends Backends, profile config.Profile, opts ...Option) (*Orchestrator, error) {
	if err := backends.validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: profile")
	}
	o := &Orchestrator{
		backends:    backends,
		profile:     profile,
		transitions: transitions(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run drives state through the stages. It returns an *AbortError when the run
// ends without a final answer; the trace in state shows how far it got.
func (o *Orchestrator) Run(ctx context.Context, runID string, state *model.PipelineState) (Report, error) {
	r := &run{
		id:       runID,
		state:    state,
		profile:  o.profile,
		backends: o.backends,
		usage:    &usageCounter{},
		notify:   &notifier{runID: runID, fn: o.progress},
		log:      zap.L().With(zap.String("run_id", runID), zap.String("profile", o.profile.Name)),
	}

	abort := func(stage model.StageName, err error) (Report, error) {
		r.log.Warn("pipeline: aborted", zap.String("stage", string(stage)), zap.Error(err))
		return Report{Outcome: model.OutcomeAborted, Usage: r.usage.snapshot()}, &AbortError{Stage: stage, Err: err}
	}

	for _, t := range o.transitions {
		if err := ctx.Err(); err != nil {
			return abort(t.stage, err)
		}

		if t.requires != "" {
			prev, ok := state.StageEntryFor(t.requires)
			if !ok || !prev.Status.Satisfied() {
				if t.onBlocked == blockAbort {
					return abort(t.stage, eris.Wrapf(ErrBlocked, "%s", t.requires))
				}
				o.record(r, t.stage, time.Now(), stageResult{
					status:   model.StageStatusSkipped,
					degraded: true,
					detail:   fmt.Sprintf("%s did not complete", t.requires),
				})
				continue
			}
		}

		start := time.Now()
		r.notify.stage(t.stage, model.StageStatusRunning, false, "")
		res := runStage(ctx, t, r)
		o.record(r, t.stage, start, res)

		if res.status == model.StageStatusFailed && t.fatal {
			return abort(t.stage, res.err)
		}
	}

	if !state.HasFinalAnswer() {
		return abort(model.StageSynthesize, eris.New("no final answer produced"))
	}

	r.log.Info("pipeline: completed", zap.Int("stages", len(state.Trace())))
	return Report{Outcome: model.OutcomeCompleted, Usage: r.usage.snapshot()}, nil
}

func (o *Orchestrator) record(r *run, stage model.StageName, start time.Time, res stageResult) {
	entry := model.StageEntry{
		Stage:     stage,
		Status:    res.status,
		Degraded:  res.degraded,
		Detail:    res.detail,
		StartedAt: start,
		Duration:  time.Since(start).Milliseconds(),
	}
	if res.err != nil {
		entry.Error = res.err.Error()
	}
	r.state.AppendStage(entry)
	r.notify.stage(stage, res.status, res.degraded, res.detail)

	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.String("status", string(res.status)),
		zap.Bool("degraded", res.degraded),
		zap.Int64("duration_ms", entry.Duration),
	}
	if res.status == model.StageStatusFailed {
		r.log.Error("pipeline: stage failed", append(fields, zap.Error(res.err))...)
		return
	}
	r.log.Info("pipeline: stage complete", fields...)
}

// runStage converts a panic in stage code into a failed result.
func runStage(ctx context.Context, t transition, r *run) (res stageResult) {
	defer func() {
		if p := recover(); p != nil {
			res = stageResult{status: model.StageStatusFailed, err: eris.Errorf("%s: panic: %v", t.stage, p)}
		}
	}()
	return t.run(ctx, r)
}
