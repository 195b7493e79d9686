package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/config"
	"github.com/sells-group/shopping-cli/internal/cost"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/pipeline"
	"github.com/sells-group/shopping-cli/internal/scrape"
	"github.com/sells-group/shopping-cli/internal/search"
	anthropicpkg "github.com/sells-group/shopping-cli/pkg/anthropic"
	"github.com/sells-group/shopping-cli/pkg/firecrawl"
	"github.com/sells-group/shopping-cli/pkg/jina"
	"github.com/sells-group/shopping-cli/pkg/perplexity"
	"github.com/sells-group/shopping-cli/pkg/tavily"
)

const perplexityDefaultModel = "sonar-pro"

// initRunner validates cfg for mode, builds the configured backends and
// returns a Runner over them.
func initRunner(c *config.Config, mode string) (*pipeline.Runner, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	gen, err := newGenerator(c)
	if err != nil {
		return nil, err
	}
	searcher, err := newSearcher(c)
	if err != nil {
		return nil, err
	}
	scraper, err := newScrapeChain(c)
	if err != nil {
		return nil, err
	}

	profiles, err := loadProfiles(c)
	if err != nil {
		return nil, err
	}

	zap.L().Info("backends initialized",
		zap.String("generator", gen.Name()),
		zap.String("search", searcher.Name()),
		zap.Strings("scrapers", c.Backends.Scrapers),
		zap.Strings("profiles", profiles.Names()),
	)

	return pipeline.NewRunner(
		pipeline.Backends{Generator: gen, Searcher: searcher, Scraper: scraper},
		profiles,
		pipeline.WithCostCalculator(cost.NewCalculator(c.Pricing)),
	)
}

// loadProfiles resolves the profile set, defaulting the preset model to the
// configured generator's.
func loadProfiles(c *config.Config) (*config.Profiles, error) {
	profilesCfg := c.Profiles
	if profilesCfg.Model == "" {
		profilesCfg.Model = defaultModel(c.Backends.Generator)
	}
	return config.LoadProfiles(profilesCfg)
}

// defaultModel is the model the built-in profiles use for a generator.
func defaultModel(generator string) string {
	switch generator {
	case config.GeneratorAnthropic:
		return llm.DefaultAnthropicModel
	case config.GeneratorPerplexity:
		return perplexityDefaultModel
	}
	return llm.DefaultOpenAIModel
}

func newGenerator(c *config.Config) (llm.Generator, error) {
	switch c.Backends.Generator {
	case config.GeneratorAnthropic:
		var opts []anthropicpkg.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(c.Anthropic.Key, opts...)
		return llm.NewAnthropicGenerator(client, defaultModel(c.Backends.Generator), c.Anthropic.CacheTTL), nil
	case config.GeneratorOpenAI:
		return llm.NewOpenAIGenerator(llm.OpenAIConfig{
			APIKey:  c.OpenAI.Key,
			BaseURL: c.OpenAI.BaseURL,
		})
	case config.GeneratorPerplexity:
		client := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(perplexityDefaultModel),
		)
		return llm.NewPerplexityGenerator(client, perplexityDefaultModel), nil
	}
	return nil, eris.Errorf("unknown generator %q", c.Backends.Generator)
}

func newSearcher(c *config.Config) (search.Searcher, error) {
	switch c.Backends.Search {
	case config.SearchTavily:
		client := tavily.NewClient(c.Tavily.Key, tavily.WithBaseURL(c.Tavily.BaseURL))
		return search.WithRateLimit(search.NewTavilySearcher(client, config.DepthBasic), c.Tavily.RateLimit, 1), nil
	case config.SearchJina:
		return search.WithRateLimit(search.NewJinaSearcher(newJinaClient(c)), c.Jina.RateLimit, 1), nil
	}
	return nil, eris.Errorf("unknown search backend %q", c.Backends.Search)
}

func newJinaClient(c *config.Config) jina.Client {
	opts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL)}
	if c.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	return jina.NewClient(c.Jina.Key, opts...)
}

// newScrapeChain builds the scrapers in configured order behind the
// exclude-path matcher.
func newScrapeChain(c *config.Config) (*scrape.Chain, error) {
	scrapers := make([]scrape.Scraper, 0, len(c.Backends.Scrapers))
	for _, name := range c.Backends.Scrapers {
		switch name {
		case config.ScraperLocal:
			opts := []scrape.LocalOption{scrape.WithLocalHTTPClient(&http.Client{Timeout: 20 * time.Second})}
			if c.Scrape.UserAgent != "" {
				opts = append(opts, scrape.WithUserAgent(c.Scrape.UserAgent))
			}
			scrapers = append(scrapers, scrape.NewLocalScraper(opts...))
		case config.ScraperJina:
			scrapers = append(scrapers, scrape.NewJinaAdapter(newJinaClient(c)))
		case config.ScraperFirecrawl:
			client := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
			scrapers = append(scrapers, scrape.NewFirecrawlAdapter(client))
		default:
			return nil, eris.Errorf("unknown scraper %q", name)
		}
	}
	return scrape.NewChain(scrape.NewPathMatcher(c.Scrape.ExcludePaths), scrapers...), nil
}
