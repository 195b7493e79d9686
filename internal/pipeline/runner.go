package pipeline

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/cost"
	"github.com/sells-group/shopping-cli/internal/model"
)

// FailureMessage is the user-facing text for an aborted run.
const FailureMessage = "죄송합니다. 답변 생성 중 오류가 발생했습니다."

// Request is one question from a caller.
type Request struct {
	Query    string                   `json:"query"`
	Profile  string                   `json:"profile,omitempty"`
	Messages []model.ConversationTurn `json:"messages,omitempty"`
}

// Runner answers questions with a fresh orchestrator per request.
type Runner struct {
	backends Backends
	profiles *config.Profiles
	calc     *cost.Calculator
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCostCalculator sets the calculator used for EstimatedCostUSD.
func WithCostCalculator(calc *cost.Calculator) RunnerOption {
	return func(rn *Runner) {
		rn.calc = calc
	}
}

// NewRunner creates a Runner over shared backends and a resolved profile set.
func NewRunner(backends Backends, profiles *config.Profiles, opts ...RunnerOption) (*Runner, error) {
	if err := backends.validate(); err != nil {
		return nil, err
	}
	if profiles == nil {
		return nil, eris.New("pipeline: profiles are required")
	}
	rn := &Runner{
		backends: backends,
		profiles: profiles,
		calc:     cost.NewCalculator(cost.DefaultRates()),
	}
	for _, opt := range opts {
		opt(rn)
	}
	return rn, nil
}

// Profiles returns the profile set the runner resolves names against.
func (rn *Runner) Profiles() *config.Profiles { return rn.profiles }

// Run answers one question. An unknown profile or empty query is an error
// with no result. When the run aborts both the partial result and an
// *AbortError are returned.
func (rn *Runner) Run(ctx context.Context, req Request, opts ...Option) (*model.RunResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, eris.New("pipeline: query is required")
	}
	profile, err := rn.profiles.Get(req.Profile)
	if err != nil {
		return nil, err
	}
	orch, err := NewOrchestrator(rn.backends, profile, opts...)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	state := model.NewPipelineState(query, req.Messages)

	zap.L().Info("pipeline: run started",
		zap.String("run_id", runID),
		zap.String("profile", profile.Name),
		zap.String("query", query),
	)

	start := time.Now()
	report, runErr := orch.Run(ctx, runID, state)
	elapsed := time.Since(start)

	result := &model.RunResult{
		RunID:         runID,
		Query:         query,
		Profile:       profile.Name,
		Outcome:       report.Outcome,
		Trace:         state.Trace(),
		Analysis:      state.Analysis,
		SearchResults: state.SearchResults,
		ScrapedPages:  state.ScrapedPages,
		Messages:      slices.Clone(state.Messages),
		Usage:         report.Usage,
		Duration:      elapsed,
		DurationMS:    elapsed.Milliseconds(),
	}
	result.EstimatedCostUSD = rn.calc.Run(cost.RunBackends{
		Generator:   rn.backends.Generator.Name(),
		Model:       profile.Model,
		Search:      rn.backends.Searcher.Name(),
		SearchDepth: profile.SearchDepth,
	}, report.Usage)

	if runErr != nil {
		result.FailureMessage = FailureMessage
		return result, runErr
	}

	result.FinalAnswer = state.FinalAnswer()
	result.Messages = append(result.Messages,
		model.ConversationTurn{Role: model.RoleUser, Content: query},
		model.ConversationTurn{Role: model.RoleAssistant, Content: result.FinalAnswer},
	)

	zap.L().Info("pipeline: run finished",
		zap.String("run_id", runID),
		zap.Int64("duration_ms", result.DurationMS),
		zap.Float64("estimated_cost_usd", result.EstimatedCostUSD),
	)
	return result, nil
}
