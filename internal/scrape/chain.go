// Package scrape provides chained page scraping for product and review pages.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/resilience"
)

// Chain tries scrapers in priority order, returning the first success.
// Chain is itself a Scraper.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
}

// NewChain creates a Chain with the given path matcher and scrapers.
// Scrapers are tried in order; the first successful result is returned.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
	}
}

// Name implements Scraper.
func (c *Chain) Name() string { return "chain" }

// Supports reports whether the URL passes the path matcher and at least one
// scraper in the chain accepts it.
func (c *Chain) Supports(targetURL string) bool {
	if c.PathMatcher.IsExcluded(targetURL) {
		return false
	}
	for _, s := range c.scrapers {
		if s.Supports(targetURL) {
			return true
		}
	}
	return false
}

// Scrape tries each scraper in order for a single URL. When every scraper
// fails, the first transient error is returned so the call stays retryable;
// only when every failure was permanent is the last error returned. Excluded
// URLs fail permanently.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, resilience.NewPermanentError(eris.Errorf("scrape: url excluded by path matcher: %s", targetURL))
	}

	var lastErr, transientErr error
	for _, s := range c.scrapers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scrape: cancelled")
		}
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
			if transientErr == nil && resilience.IsTransient(err) {
				transientErr = err
			}
		}
	}
	if transientErr != nil {
		return nil, eris.Wrap(transientErr, "scrape: all scrapers failed")
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, resilience.NewPermanentError(eris.Errorf("scrape: no suitable scraper for url: %s", targetURL))
}
