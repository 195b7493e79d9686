// Package search adapts web search backends to the pipeline's Searcher contract.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/shopping-cli/internal/model"
)

// Searcher runs one web search query.
type Searcher interface {
	Name() string
	// Search returns at most maxResults hits in provider rank order.
	// Implementations do not retry.
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error)
}

type depthKey struct{}

// WithDepth asks searchers that support it to search at depth ("basic" or
// "advanced") for calls made with the returned context.
func WithDepth(ctx context.Context, depth string) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFrom(ctx context.Context, fallback string) string {
	if d, ok := ctx.Value(depthKey{}).(string); ok && d != "" {
		return d
	}
	return fallback
}

// NormalizeURL canonicalizes a URL for deduplication: lower-case scheme and
// host, no fragment, no trailing slash. Unparseable input is trimmed only.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	return u.String()
}

// Domain returns the lower-case host of raw without a leading "www.".
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func toHits(provider string, n int, get func(i int) (string, string, string)) []model.SearchHit {
	hits := make([]model.SearchHit, 0, n)
	for i := range n {
		u, title, snippet := get(i)
		if strings.TrimSpace(u) == "" {
			continue
		}
		hits = append(hits, model.SearchHit{
			URL:          u,
			Title:        strings.TrimSpace(title),
			Snippet:      strings.TrimSpace(snippet),
			Provider:     provider,
			ProviderRank: len(hits) + 1,
		})
	}
	return hits
}
