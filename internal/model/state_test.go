package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status StageStatus
		want   string
	}{
		{StageStatusPending, "pending"},
		{StageStatusRunning, "running"},
		{StageStatusOK, "ok"},
		{StageStatusFailed, "failed"},
		{StageStatusSkipped, "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestStageStatus_Satisfied(t *testing.T) {
	t.Parallel()

	assert.True(t, StageStatusOK.Satisfied())
	assert.True(t, StageStatusSkipped.Satisfied())
	assert.False(t, StageStatusFailed.Satisfied())
	assert.False(t, StageStatusPending.Satisfied())
	assert.False(t, StageStatusRunning.Satisfied())
}

func TestStages_Order(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []StageName{StageAnalyze, StageSearch, StageScrape, StageSynthesize}, Stages())
}

func TestPipelineState_SetFinalAnswerOnce(t *testing.T) {
	t.Parallel()

	s := NewPipelineState("겨울 패딩 추천", nil)
	assert.False(t, s.HasFinalAnswer())

	require.NoError(t, s.SetFinalAnswer("first"))
	err := s.SetFinalAnswer("second")
	assert.ErrorIs(t, err, ErrFinalAnswerSet)
	assert.Equal(t, "first", s.FinalAnswer())
	assert.True(t, s.HasFinalAnswer())
}

func TestPipelineState_EmptyAnswerStillCountsAsSet(t *testing.T) {
	t.Parallel()

	s := NewPipelineState("q", nil)
	require.NoError(t, s.SetFinalAnswer(""))
	assert.Error(t, s.SetFinalAnswer("again"))
}

func TestPipelineState_TraceIsCopy(t *testing.T) {
	t.Parallel()

	s := NewPipelineState("q", nil)
	s.AppendStage(StageEntry{Stage: StageAnalyze, Status: StageStatusOK, StartedAt: time.Now()})

	tr := s.Trace()
	tr[0].Status = StageStatusFailed

	got, ok := s.StageEntryFor(StageAnalyze)
	require.True(t, ok)
	assert.Equal(t, StageStatusOK, got.Status)
}

func TestPipelineState_StageEntryForLatest(t *testing.T) {
	t.Parallel()

	s := NewPipelineState("q", nil)
	s.AppendStage(StageEntry{Stage: StageSearch, Status: StageStatusFailed})
	s.AppendStage(StageEntry{Stage: StageSearch, Status: StageStatusOK})

	got, ok := s.StageEntryFor(StageSearch)
	require.True(t, ok)
	assert.Equal(t, StageStatusOK, got.Status)

	_, ok = s.StageEntryFor(StageScrape)
	assert.False(t, ok)
}

func TestPipelineState_HistoryCopied(t *testing.T) {
	t.Parallel()

	history := []ConversationTurn{{Role: RoleUser, Content: "hi"}}
	s := NewPipelineState("q", history)
	s.Messages[0].Content = "changed"
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "q", s.UserQuery())
}

func TestPipelineState_HitURLs(t *testing.T) {
	t.Parallel()

	s := NewPipelineState("q", nil)
	s.SearchResults = []SearchHit{{URL: "https://a.com"}, {URL: "https://b.com"}}
	urls := s.HitURLs()
	assert.True(t, urls["https://a.com"])
	assert.False(t, urls["https://c.com"])
}

func TestIntent_Valid(t *testing.T) {
	t.Parallel()

	for _, i := range Intents() {
		assert.True(t, i.Valid(), i)
	}
	assert.False(t, Intent("browse").Valid())
	assert.False(t, Intent("").Valid())
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()

	u := Usage{LLMCalls: 1, InputTokens: 100}
	u.Add(Usage{LLMCalls: 2, InputTokens: 50, OutputTokens: 10, SearchCalls: 3, ScrapeCalls: 1, ScrapeCredits: 1})
	assert.Equal(t, Usage{LLMCalls: 3, InputTokens: 150, OutputTokens: 10, SearchCalls: 3, ScrapeCalls: 1, ScrapeCredits: 1}, u)
}
