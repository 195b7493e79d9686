package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/pkg/tavily"
)

// TavilySearcher searches with the Tavily API.
type TavilySearcher struct {
	client tavily.Client
	depth  string
}

// NewTavilySearcher wraps a Tavily client. depth is "basic" or "advanced" and
// applies unless the call context carries one set with WithDepth.
func NewTavilySearcher(client tavily.Client, depth string) *TavilySearcher {
	return &TavilySearcher{client: client, depth: depth}
}

// Name implements Searcher.
func (s *TavilySearcher) Name() string { return "tavily" }

// Search implements Searcher.
func (s *TavilySearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	resp, err := s.client.Search(ctx, tavily.SearchRequest{
		Query:       query,
		SearchDepth: depthFrom(ctx, s.depth),
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "search: tavily %q", query)
	}

	results := resp.Results
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return toHits(s.Name(), len(results), func(i int) (string, string, string) {
		r := results[i]
		return r.URL, r.Title, r.Content
	}), nil
}
