package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
	"github.com/sells-group/shopping-cli/internal/scrape"
)

func newTestOrchestrator(t *testing.T, gen *mockGenerator, s *mockSearcher, sc *mockScraper, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Backends{Generator: gen, Searcher: s, Scraper: sc}, testProfile(), opts...)
	require.NoError(t, err)
	return o
}

func statuses(trace []model.StageEntry) map[model.StageName]model.StageStatus {
	out := make(map[model.StageName]model.StageStatus, len(trace))
	for _, e := range trace {
		out[e.Stage] = e.Status
	}
	return out
}

func TestOrchestrator_FullRun(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("추천 상품은 A 패딩입니다."), nil).Once()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, "겨울 패딩 재킷 쇼핑 구매 추천", 2).Return([]model.SearchHit{
		hit("https://www.coupang.com/vp/products/1", "겨울 패딩 재킷 A", "따뜻한 패딩 할인", 1),
	}, nil).Once()
	searcher.On("Search", mock.Anything, "경량 패딩 쇼핑 구매 추천", 2).Return([]model.SearchHit{
		hit("https://blog.example.com/padding", "경량 패딩 후기", "리뷰", 1),
	}, nil).Once()

	scraper := &mockScraper{}
	scraper.On("Scrape", mock.Anything, "https://www.coupang.com/vp/products/1").
		Return(pageResult("https://www.coupang.com/vp/products/1", "# 겨울 패딩 재킷 A\n판매가 89,000원\n평점 4.7"), nil).Once()

	o := newTestOrchestrator(t, gen, searcher, scraper)
	state := model.NewPipelineState("겨울용 패딩 재킷 추천해줘", nil)

	report, err := o.Run(context.Background(), "run-1", state)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, report.Outcome)
	assert.Equal(t, "추천 상품은 A 패딩입니다.", state.FinalAnswer())

	trace := state.Trace()
	require.Len(t, trace, 4)
	for i, stage := range model.Stages() {
		assert.Equal(t, stage, trace[i].Stage)
		assert.Equal(t, model.StageStatusOK, trace[i].Status)
	}

	page := state.ScrapedPages["https://www.coupang.com/vp/products/1"]
	assert.Equal(t, model.PageStatusOK, page.Status)
	require.NotEmpty(t, page.Facts)
	assert.Equal(t, "89,000원", page.Facts[0].Price)

	assert.Equal(t, 2, report.Usage.LLMCalls)
	assert.Equal(t, 2, report.Usage.SearchCalls)
	assert.Equal(t, 1, report.Usage.ScrapeCalls)
	assert.Equal(t, 1, report.Usage.ScrapeCredits)
	assert.Equal(t, 200, report.Usage.InputTokens)

	gen.AssertExpectations(t)
	searcher.AssertExpectations(t)
	scraper.AssertExpectations(t)
}

func TestOrchestrator_ZeroSearchResults(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("일반적인 패딩 구매 기준을 안내해 드립니다."), nil).Once()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchHit{}, nil)

	scraper := &mockScraper{}

	o := newTestOrchestrator(t, gen, searcher, scraper)
	state := model.NewPipelineState("겨울용 패딩 재킷 추천해줘", nil)

	report, err := o.Run(context.Background(), "run-zero", state)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, report.Outcome)
	assert.Contains(t, state.FinalAnswer(), InsufficientEvidenceNotice)
	assert.Empty(t, state.SearchResults)
	assert.Empty(t, state.ScrapedPages)

	got := statuses(state.Trace())
	assert.Len(t, state.Trace(), 4)
	assert.Equal(t, model.StageStatusFailed, got[model.StageSearch])
	assert.Equal(t, model.StageStatusSkipped, got[model.StageScrape])
	assert.Equal(t, model.StageStatusOK, got[model.StageSynthesize])

	scrapeEntry, ok := state.StageEntryFor(model.StageScrape)
	require.True(t, ok)
	assert.Equal(t, "search did not complete", scrapeEntry.Detail)

	entry, ok := state.StageEntryFor(model.StageSynthesize)
	require.True(t, ok)
	assert.True(t, entry.Degraded)

	scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
}

func TestOrchestrator_SearchFailedSkipsScrape(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("답변"), nil).Once()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, resilience.NewPermanentError(errors.New("invalid api key")))

	scraper := &mockScraper{}

	o := newTestOrchestrator(t, gen, searcher, scraper)
	state := model.NewPipelineState("겨울용 패딩 재킷 추천해줘", nil)

	report, err := o.Run(context.Background(), "run-search-failed", state)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, report.Outcome)

	trace := state.Trace()
	require.Len(t, trace, 4)
	assert.Equal(t, model.StageStatusFailed, trace[1].Status)
	assert.Contains(t, trace[1].Error, "invalid api key")
	assert.Equal(t, model.StageStatusSkipped, trace[2].Status)
	assert.True(t, trace[2].Degraded)
	assert.Equal(t, "search did not complete", trace[2].Detail)

	// Permanent errors are tried once per keyword.
	assert.Equal(t, 2, report.Usage.SearchCalls)
	assert.Contains(t, state.FinalAnswer(), InsufficientEvidenceNotice)
	scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
}

func TestOrchestrator_SynthesizeFailureAborts(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529))

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchHit{}, nil)

	o := newTestOrchestrator(t, gen, searcher, &mockScraper{})
	state := model.NewPipelineState("무선 이어폰 추천", nil)

	report, err := o.Run(context.Background(), "run-abort", state)
	require.Error(t, err)

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, model.StageSynthesize, abortErr.Stage)

	var fatal *resilience.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, fatal.Exhausted)
	assert.Equal(t, 3, fatal.Attempts)

	assert.Equal(t, model.OutcomeAborted, report.Outcome)
	assert.False(t, state.HasFinalAnswer())

	trace := state.Trace()
	require.Len(t, trace, 4)
	assert.Equal(t, model.StageStatusFailed, trace[3].Status)
	assert.Equal(t, 4, report.Usage.LLMCalls)
}

func TestOrchestrator_EmptyAnswerAborts(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("   "), nil).Once()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchHit{}, nil)

	o := newTestOrchestrator(t, gen, searcher, &mockScraper{})
	state := model.NewPipelineState("무선 이어폰 추천", nil)

	_, err := o.Run(context.Background(), "run-empty", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
	assert.False(t, state.HasFinalAnswer())
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	o := newTestOrchestrator(t, gen, &mockSearcher{}, &mockScraper{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := model.NewPipelineState("노트북 추천", nil)
	report, err := o.Run(ctx, "run-cancel", state)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.OutcomeAborted, report.Outcome)

	// No stage was entered.
	assert.Empty(t, state.Trace())
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestOrchestrator_CancelledBetweenStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).
		Run(func(mock.Arguments) { cancel() }).
		Return(textResponse(analysisJSON), nil).Once()

	searcher := &mockSearcher{}
	o := newTestOrchestrator(t, gen, searcher, &mockScraper{})

	state := model.NewPipelineState("노트북 추천", nil)
	_, err := o.Run(ctx, "run-cancel-mid", state)
	require.Error(t, err)

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, model.StageSearch, abortErr.Stage)

	// The in-flight analyze call finished and was recorded; search was never entered.
	trace := state.Trace()
	require.Len(t, trace, 1)
	assert.Equal(t, model.StageAnalyze, trace[0].Stage)
	assert.Equal(t, model.StageStatusOK, trace[0].Status)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_StagePanicIsFailure(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("답변"), nil).Once()

	o := newTestOrchestrator(t, gen, &mockSearcher{}, &mockScraper{})
	o.transitions[1].run = func(context.Context, *run) stageResult { panic("boom") }

	state := model.NewPipelineState("노트북 추천", nil)
	report, err := o.Run(context.Background(), "run-panic", state)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, report.Outcome)

	trace := state.Trace()
	require.Len(t, trace, 4)
	assert.Equal(t, model.StageStatusFailed, trace[1].Status)
	assert.Contains(t, trace[1].Error, "panic: boom")
	assert.Equal(t, model.StageStatusSkipped, trace[2].Status)
}

func TestOrchestrator_BlockedSynthesizeAborts(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	o := newTestOrchestrator(t, gen, &mockSearcher{}, &mockScraper{})
	o.transitions[0].run = func(context.Context, *run) stageResult {
		return stageResult{status: model.StageStatusFailed, err: errors.New("analysis unavailable")}
	}

	state := model.NewPipelineState("노트북 추천", nil)
	_, err := o.Run(context.Background(), "run-blocked", state)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, model.StageSynthesize, abortErr.Stage)

	got := statuses(state.Trace())
	assert.Len(t, state.Trace(), 3)
	assert.Equal(t, model.StageStatusFailed, got[model.StageAnalyze])
	assert.Equal(t, model.StageStatusSkipped, got[model.StageSearch])
	assert.Equal(t, model.StageStatusSkipped, got[model.StageScrape])
}

func TestOrchestrator_ProgressEvents(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).
		Return(nil, resilience.NewTransientError(errors.New("rate limited"), 429)).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil).Once()
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse("답변"), nil).Once()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchHit{}, nil)

	var mu sync.Mutex
	var events []Event
	o := newTestOrchestrator(t, gen, searcher, &mockScraper{}, WithProgress(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	state := model.NewPipelineState("노트북 추천", nil)
	_, err := o.Run(context.Background(), "run-progress", state)
	require.NoError(t, err)

	var analyzeAttempts []Event
	var stageEvents int
	for _, ev := range events {
		assert.Equal(t, "run-progress", ev.RunID)
		assert.False(t, ev.Time.IsZero())
		switch ev.Kind {
		case EventAttempt:
			if ev.Stage == model.StageAnalyze {
				analyzeAttempts = append(analyzeAttempts, ev)
			}
		case EventStage:
			stageEvents++
		}
	}

	require.Len(t, analyzeAttempts, 2)
	assert.Equal(t, "analyze.generate", analyzeAttempts[0].Operation)
	assert.True(t, analyzeAttempts[0].Retrying)
	assert.Contains(t, analyzeAttempts[0].Error, "rate limited")
	assert.Equal(t, 2, analyzeAttempts[1].Attempt)
	assert.Empty(t, analyzeAttempts[1].Error)

	// Search finds nothing, so scrape is skipped without a running event.
	assert.Equal(t, 7, stageEvents)
	assert.Equal(t, EventStage, events[0].Kind)
	assert.Equal(t, model.StageStatusRunning, events[0].Status)
}

func TestNewOrchestrator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(Backends{Searcher: &mockSearcher{}, Scraper: &mockScraper{}}, testProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator is required")

	bad := testProfile()
	bad.Concurrency = 0
	_, err = NewOrchestrator(Backends{Generator: &mockGenerator{}, Searcher: &mockSearcher{}, Scraper: &mockScraper{}}, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}

func TestScrapeStage_PartialFailure(t *testing.T) {
	t.Parallel()

	const pageA = "https://www.coupang.com/vp/products/a"
	const pageB = "https://www.11st.co.kr/products/b"

	scraper := &mockScraper{}
	badGateway := &scrape.StatusError{Scraper: "firecrawl", URL: pageA, StatusCode: 502}
	scraper.On("Scrape", mock.Anything, pageA).Return(nil, badGateway).Twice()
	scraper.On("Scrape", mock.Anything, pageA).Return(pageResult(pageA, "# 경량 패딩 A\n가격 59,000원"), nil).Once()
	scraper.On("Scrape", mock.Anything, pageB).
		Return(nil, &scrape.StatusError{Scraper: "firecrawl", URL: pageB, StatusCode: 503}).Times(3)

	profile := testProfile()
	profile.MaxPagesToScrape = 2
	profile.RetryMaxAttempts = 3
	profile.Concurrency = 2

	state := model.NewPipelineState("경량 패딩", nil)
	state.SearchResults = []model.SearchHit{
		hit(pageA, "경량 패딩 A", "", 1),
		hit(pageB, "경량 패딩 B", "", 2),
	}

	r := newTestRun(state, profile, Backends{Generator: &mockGenerator{}, Searcher: &mockSearcher{}, Scraper: scraper})

	res := scrapeStage(context.Background(), r)
	assert.Equal(t, model.StageStatusOK, res.status)
	assert.True(t, res.degraded)
	assert.Equal(t, "1/2 pages scraped", res.detail)

	require.Len(t, state.ScrapedPages, 2)
	assert.Equal(t, model.PageStatusOK, state.ScrapedPages[pageA].Status)
	assert.Equal(t, "경량 패딩 A", state.ScrapedPages[pageA].Title)
	assert.Equal(t, model.PageStatusFailed, state.ScrapedPages[pageB].Status)
	assert.Contains(t, state.ScrapedPages[pageB].Error, "gave up after 3 attempts")

	assert.Equal(t, int64(6), r.usage.scrapeCalls.Load())
	assert.Equal(t, int64(1), r.usage.scrapeCredits.Load())
	scraper.AssertExpectations(t)
}

func TestScrapeStage_AllFailed(t *testing.T) {
	t.Parallel()

	const page = "https://shop.example.com/item"
	scraper := &mockScraper{}
	scraper.On("Scrape", mock.Anything, page).
		Return(nil, &scrape.StatusError{Scraper: "firecrawl", URL: page, StatusCode: 404}).Once()

	state := model.NewPipelineState("키보드", nil)
	state.SearchResults = []model.SearchHit{hit(page, "키보드", "", 1)}

	r := newTestRun(state, testProfile(), Backends{Generator: &mockGenerator{}, Searcher: &mockSearcher{}, Scraper: scraper})

	res := scrapeStage(context.Background(), r)
	assert.Equal(t, model.StageStatusFailed, res.status)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "all pages failed")

	// 404 is permanent: one attempt only.
	assert.Equal(t, int64(1), r.usage.scrapeCalls.Load())
	scraper.AssertExpectations(t)
}
