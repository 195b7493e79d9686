package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/pipeline"
	"github.com/sells-group/shopping-cli/internal/scrape"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Name() string { return "openai" }

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

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

const analysisJSON = `{"intent": "recommend", "main_product": "패딩 재킷", "keywords": ["겨울 패딩 재킷"]}`

// newTestRunner builds a Runner over gen with a search backend that finds
// nothing, so runs go straight from Search to Synthesize.
func newTestRunner(t *testing.T, gen *mockGenerator) *pipeline.Runner {
	t.Helper()

	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchHit{}, nil)

	profiles, err := config.LoadProfiles(config.ProfilesConfig{})
	require.NoError(t, err)

	runner, err := pipeline.NewRunner(pipeline.Backends{Generator: gen, Searcher: searcher, Scraper: &mockScraper{}}, profiles)
	require.NoError(t, err)
	return runner
}

func answeringGenerator(answer string) *mockGenerator {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, forStage(model.StageAnalyze)).Return(textResponse(analysisJSON), nil)
	gen.On("Generate", mock.Anything, forStage(model.StageSynthesize)).Return(textResponse(answer), nil)
	return gen
}
