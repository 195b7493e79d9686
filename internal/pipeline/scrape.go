package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shopping-cli/internal/extract"
	"github.com/sells-group/shopping-cli/internal/llm"
	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
	"github.com/sells-group/shopping-cli/internal/scrape"
)

const factsMaxTokens = 1024

// scrapeStage fetches the best-ranked pages concurrently. Each URL is an
// independent item: a failed page is recorded with status failed and the
// stage only fails when every attempted page failed.
func scrapeStage(ctx context.Context, r *run) stageResult {
	var candidates []model.SearchHit
	for _, h := range r.state.SearchResults {
		if r.backends.Scraper.Supports(h.URL) {
			candidates = append(candidates, h)
		}
	}

	var hints []string
	if r.state.Analysis != nil {
		hints = r.state.Analysis.SiteHints
	}
	urls := selectPages(candidates, r.profile.MaxPagesToScrape, r.profile.PreferredDomains, hints)
	if len(urls) == 0 {
		return stageResult{status: model.StageStatusSkipped, degraded: true, detail: "no scrapable pages"}
	}

	pages := make([]model.ScrapedPage, len(urls))
	attempted := make([]bool, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(r.profile.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			attempted[i] = true
			pages[i] = r.scrapePage(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	var ok, failed, degraded int
	var firstErr string
	for i, u := range urls {
		if !attempted[i] {
			continue
		}
		p := pages[i]
		r.state.ScrapedPages[u] = p
		switch {
		case p.Status == model.PageStatusOK:
			ok++
			if p.Degraded {
				degraded++
			}
		default:
			failed++
			if firstErr == "" {
				firstErr = p.Error
			}
		}
	}

	detail := fmt.Sprintf("%d/%d pages scraped", ok, ok+failed)
	switch {
	case ok+failed == 0:
		return stageResult{status: model.StageStatusSkipped, degraded: true, detail: "cancelled before any page was attempted"}
	case ok == 0:
		return stageResult{status: model.StageStatusFailed, detail: detail, err: eris.Errorf("all pages failed: %s", firstErr)}
	}
	return stageResult{status: model.StageStatusOK, degraded: failed > 0 || degraded > 0, detail: detail}
}

// scrapePage fetches one URL under the retry policy and extracts facts.
func (r *run) scrapePage(ctx context.Context, targetURL string) model.ScrapedPage {
	cfg := r.retryConfig(model.StageScrape, "scrape."+r.backends.Scraper.Name())
	res, err := resilience.DoVal(context.WithoutCancel(ctx), cfg, func(ctx context.Context) (*scrape.Result, error) {
		r.usage.scrapeCalls.Add(1)
		res, err := r.backends.Scraper.Scrape(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		r.usage.scrapeCredits.Add(int64(res.Credits))
		r.usage.readerTokens.Add(int64(res.ReaderTokens))
		return res, nil
	})
	if err != nil {
		r.log.Warn("scrape: page failed", zap.String("url", targetURL), zap.Error(err))
		return model.ScrapedPage{URL: targetURL, Status: model.PageStatusFailed, Error: err.Error()}
	}

	text := extract.CleanContent(res.Page.Text, r.profile.ContentMaxLength)
	page := model.ScrapedPage{
		URL:     targetURL,
		Title:   res.Page.Title,
		RawText: text,
		Status:  model.PageStatusOK,
		Source:  res.Source,
	}
	if page.Title == "" {
		page.Title = extract.ExtractTitle(text)
	}

	page.Facts, page.Degraded = r.extractFacts(ctx, page)
	return page
}

// extractFacts reads product facts from a page, through the generator when
// the profile asks for it and from the page text otherwise. The bool is true
// when the facts are less trustworthy than the configured path promises.
func (r *run) extractFacts(ctx context.Context, page model.ScrapedPage) ([]model.ProductFact, bool) {
	schema := extract.ProductSchema{SourceURL: page.URL}

	if !r.profile.LLMFactExtraction {
		res := extract.Extract(page.RawText, schema)
		return res.Value.Products, res.Empty
	}

	resp, err := r.generate(ctx, model.StageScrape, llm.Request{
		System:     factsSystem,
		Prompt:     factsPrompt(page),
		SchemaHint: factsSchemaHint,
		MaxTokens:  factsMaxTokens,
	})
	if err != nil {
		r.log.Warn("scrape: fact extraction failed, using page heuristics",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		res := extract.Extract("", schema, extract.WithFallbackText(page.RawText))
		return res.Value.Products, true
	}

	res := extract.Extract(resp.Text, schema, extract.WithFallbackText(page.RawText))
	return res.Value.Products, res.Degraded
}
