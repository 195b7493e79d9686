package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/extract"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
)

const analyzeMaxTokens = 512

// analyzeStage reads intent and search keywords from the question. It always
// ends ok: when generation or extraction fails the keywords come from the
// query itself and the entry is marked degraded.
func analyzeStage(ctx context.Context, r *run) stageResult {
	query := r.state.UserQuery()

	resp, err := r.generate(ctx, model.StageAnalyze, llm.Request{
		System:     analyzeSystem,
		Prompt:     analyzePrompt(r.profile, query),
		SchemaHint: analysisSchemaHint,
		MaxTokens:  analyzeMaxTokens,
	})
	if err != nil {
		r.log.Warn("analyze: generation failed, using query keywords", zap.Error(err))
		a := naiveAnalysis(query)
		r.state.Analysis = &a
		return stageResult{
			status:   model.StageStatusOK,
			degraded: true,
			detail:   "generation failed: " + err.Error(),
		}
	}

	res := extract.Extract(resp.Text, extract.AnalysisSchema{})
	if !res.Degraded {
		a := res.Value
		r.state.Analysis = &a
		return stageResult{status: model.StageStatusOK}
	}

	if !res.Empty && len(res.Value.Keywords) > 0 {
		a := res.Value
		a.Degraded = true
		if !a.Intent.Valid() {
			a.Intent = extract.InferIntent(query)
		}
		r.state.Analysis = &a
		return stageResult{
			status:   model.StageStatusOK,
			degraded: true,
			detail:   "recovered from malformed analysis: " + res.Problem,
		}
	}

	r.log.Warn("analyze: no keywords in model output, using query keywords", zap.String("problem", res.Problem))
	a := naiveAnalysis(query)
	r.state.Analysis = &a
	return stageResult{
		status:   model.StageStatusOK,
		degraded: true,
		detail:   "no keywords in analysis: " + res.Problem,
	}
}

// naiveAnalysis derives an analysis from the query text alone.
func naiveAnalysis(query string) model.AnalysisResult {
	keywords := extract.NaiveKeywords(query)
	if len(keywords) > extract.MaxKeywords {
		keywords = keywords[:extract.MaxKeywords]
	}
	return model.AnalysisResult{
		Intent:      extract.InferIntent(query),
		MainProduct: keywords[0],
		Keywords:    keywords,
		Degraded:    true,
	}
}
