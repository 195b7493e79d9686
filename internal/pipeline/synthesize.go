package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
)

// InsufficientEvidenceNotice opens every answer written without scraped
// page evidence.
const InsufficientEvidenceNotice = "⚠️ 참고: 충분한 상품 정보를 수집하지 못해 답변의 근거가 제한적입니다. 가격과 재고는 판매처에서 꼭 확인해 주세요."

var synthesizeMaxTokens = map[config.Verbosity]int{
	config.VerbosityBrief:    600,
	config.VerbosityStandard: 1500,
	config.VerbosityDetailed: 3000,
}

// synthesizeStage writes the final answer. A generation failure here is
// fatal for the run.
func synthesizeStage(ctx context.Context, r *run) stageResult {
	evidence, level := buildEvidence(r.state)

	resp, err := r.generate(ctx, model.StageSynthesize, llm.Request{
		System:    synthesizeSystemPrompt(r.profile),
		Prompt:    synthesizePrompt(r.state, evidence, level, r.profile.Verbosity),
		History:   r.state.Messages,
		MaxTokens: synthesizeMaxTokens[r.profile.Verbosity],
	})
	if err != nil {
		return stageResult{status: model.StageStatusFailed, err: eris.Wrap(err, "synthesize")}
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return stageResult{status: model.StageStatusFailed, err: llm.ErrEmptyCompletion}
	}

	degraded := level != evidencePages
	if degraded && !strings.Contains(answer, InsufficientEvidenceNotice) {
		answer = InsufficientEvidenceNotice + "\n\n" + answer
	}

	if err := r.state.SetFinalAnswer(answer); err != nil {
		return stageResult{status: model.StageStatusFailed, err: err}
	}

	detail := "answer grounded in scraped pages"
	switch level {
	case evidenceSnippets:
		detail = "answer grounded in search snippets only"
	case evidenceNone:
		detail = "no evidence gathered"
	}
	return stageResult{status: model.StageStatusOK, degraded: degraded, detail: detail}
}
