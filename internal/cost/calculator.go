// Package cost estimates the dollar cost of a pipeline run from recorded usage.
package cost

import "github.com/sells-group/shopping-cli/internal/model"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Tavily     TavilyRate           `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaRate             `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityRate holds Perplexity pricing: a flat request fee plus tokens.
type PerplexityRate struct {
	PerQuery float64              `yaml:"per_query" mapstructure:"per_query"`
	Models   map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// TavilyRate holds Tavily pricing. Advanced searches cost two credits.
type TavilyRate struct {
	PerCredit float64 `yaml:"per_credit" mapstructure:"per_credit"`
}

// JinaRate holds Jina Reader and Search pricing.
type JinaRate struct {
	PerMTok   float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
	PerSearch float64 `yaml:"per_search" mapstructure:"per_search"`
}

// FirecrawlRate holds Firecrawl pricing.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// OpenAI computes the cost for an OpenAI chat completion.
func (c *Calculator) OpenAI(model string, input, output int) float64 {
	return tokenCost(c.rates.OpenAI, model, input, output)
}

// Perplexity computes the cost for one or more Perplexity requests.
func (c *Calculator) Perplexity(model string, requests, input, output int) float64 {
	return float64(requests)*c.rates.Perplexity.PerQuery + tokenCost(c.rates.Perplexity.Models, model, input, output)
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// Tavily computes the cost for a number of searches at the given depth.
func (c *Calculator) Tavily(searches int, depth string) float64 {
	credits := searches
	if depth == "advanced" {
		credits *= 2
	}
	return float64(credits) * c.rates.Tavily.PerCredit
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// JinaSearch computes the cost for Jina Search calls.
func (c *Calculator) JinaSearch(searches int) float64 {
	return float64(searches) * c.rates.Jina.PerSearch
}

// Firecrawl computes the amortized plan cost of the given credits.
func (c *Calculator) Firecrawl(credits int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return float64(credits) * c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// RunBackends names the backends a run used.
type RunBackends struct {
	Generator   string // anthropic | openai | perplexity
	Model       string
	Search      string // tavily | jina
	SearchDepth string
}

// Run estimates the total cost of a pipeline run.
func (c *Calculator) Run(b RunBackends, u model.Usage) float64 {
	var total float64
	switch b.Generator {
	case "anthropic":
		total += c.Claude(b.Model, u.InputTokens, u.OutputTokens, 0, 0)
	case "openai":
		total += c.OpenAI(b.Model, u.InputTokens, u.OutputTokens)
	case "perplexity":
		total += c.Perplexity(b.Model, u.LLMCalls, u.InputTokens, u.OutputTokens)
	}
	switch b.Search {
	case "tavily":
		total += c.Tavily(u.SearchCalls, b.SearchDepth)
	case "jina":
		total += c.JinaSearch(u.SearchCalls)
	}
	total += c.Jina(u.ReaderTokens)
	total += c.Firecrawl(u.ScrapeCredits)
	return total
}

func tokenCost(rates map[string]ModelRate, model string, input, output int) float64 {
	rate, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
		Perplexity: PerplexityRate{
			PerQuery: 0.005,
			Models: map[string]ModelRate{
				"sonar":     {Input: 1.00, Output: 1.00},
				"sonar-pro": {Input: 3.00, Output: 15.00},
			},
		},
		Tavily:    TavilyRate{PerCredit: 0.008},
		Jina:      JinaRate{PerMTok: 0.02, PerSearch: 0.0002},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}
