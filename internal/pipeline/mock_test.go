package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/scrape"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
	name string
}

func (m *mockGenerator) Name() string {
	if m.name == "" {
		return "openai"
	}
	return m.name
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// forStage matches generation requests issued by one stage.
func forStage(stage model.StageName) any {
	return mock.MatchedBy(func(req llm.Request) bool { return req.Stage == string(stage) })
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Text: text, Provider: "openai", Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 50}
}

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Name() string { return "tavily" }

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchHit), args.Error(1)
}

// --- Scraper Mock ---

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) Name() string           { return "firecrawl" }
func (m *mockScraper) Supports(_ string) bool { return true }

func (m *mockScraper) Scrape(ctx context.Context, url string) (*scrape.Result, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scrape.Result), args.Error(1)
}

// newTestRun builds the per-request state a single stage function needs.
func newTestRun(state *model.PipelineState, profile config.Profile, b Backends) *run {
	return &run{
		id:       "run-test",
		state:    state,
		profile:  profile,
		backends: b,
		usage:    &usageCounter{},
		notify:   &notifier{},
		log:      zap.NewNop(),
	}
}

// testProfile is the default preset with retry delays short enough for tests.
func testProfile() config.Profile {
	p := config.BuiltinProfiles()[config.ProfileDefault]
	p.RetryBaseDelay = time.Millisecond
	p.CallTimeout = time.Second
	return p
}

func hit(url, title, snippet string, rank int) model.SearchHit {
	return model.SearchHit{URL: url, Title: title, Snippet: snippet, Provider: "tavily", ProviderRank: rank}
}

func pageResult(url, text string) *scrape.Result {
	return &scrape.Result{
		Page:    scrape.Page{URL: url, Text: text, StatusCode: 200},
		Source:  "firecrawl",
		Credits: 1,
	}
}

const analysisJSON = `{"intent": "recommend", "main_product": "패딩 재킷", "price_range": "가격 정보 없음", "keywords": ["겨울 패딩 재킷", "경량 패딩"], "categories": ["패션"]}`
