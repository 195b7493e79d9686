package scrape

import (
	"context"

	"github.com/sells-group/shopping-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client      firecrawl.Client
	excludeTags []string
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
// excludeTags are stripped by Firecrawl before markdown conversion.
func NewFirecrawlAdapter(client firecrawl.Client, excludeTags ...string) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client, excludeTags: excludeTags}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true; Firecrawl can attempt any URL as a fallback.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API, main content only.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		ExcludeTags:     f.excludeTags,
	})
	if err != nil {
		return nil, err
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: Page{
			URL:        pageURL,
			Title:      resp.Data.PageTitle(),
			Text:       resp.Data.Markdown,
			StatusCode: resp.Data.Metadata.StatusCode,
		},
		Source:  f.Name(),
		Credits: 1,
	}, nil
}
