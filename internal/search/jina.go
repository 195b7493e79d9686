package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/pkg/jina"
)

// JinaSearcher searches with Jina Search. Page content is not requested;
// the scrape stage fetches the pages it selects.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

// Name implements Searcher.
func (s *JinaSearcher) Name() string { return "jina" }

// Search implements Searcher.
func (s *JinaSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	resp, err := s.client.Search(ctx, query, jina.WithoutContent())
	if err != nil {
		return nil, eris.Wrapf(err, "search: jina %q", query)
	}

	results := resp.Data
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return toHits(s.Name(), len(results), func(i int) (string, string, string) {
		r := results[i]
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		return r.URL, r.Title, snippet
	}), nil
}
