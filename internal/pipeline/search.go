package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
	"github.com/sells-group/shopping-cli/internal/search"
)

// shoppingSuffix steers general web search towards shopping results.
const shoppingSuffix = " 쇼핑 구매 추천"

// searchStage searches for the leading keywords concurrently and merges the
// results. A keyword that fails is logged and skipped. The stage fails when
// no keyword produced a hit, whether the searches errored or came back empty.
func searchStage(ctx context.Context, r *run) stageResult {
	keywords := r.state.Analysis.Keywords
	if len(keywords) > r.profile.MaxSearchQueries {
		keywords = keywords[:r.profile.MaxSearchQueries]
	}
	if len(keywords) == 0 {
		return stageResult{status: model.StageStatusFailed, detail: "no keywords to search"}
	}

	perKeyword := make([][]model.SearchHit, len(keywords))
	errs := make([]error, len(keywords))

	g := new(errgroup.Group)
	g.SetLimit(r.profile.Concurrency)
	for i, kw := range keywords {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			query := kw
			if r.profile.AddShoppingTerms {
				query += shoppingSuffix
			}

			cfg := r.retryConfig(model.StageSearch, "search."+r.backends.Searcher.Name())
			callCtx := search.WithDepth(context.WithoutCancel(ctx), r.profile.SearchDepth)
			hits, err := resilience.DoVal(callCtx, cfg, func(ctx context.Context) ([]model.SearchHit, error) {
				r.usage.searchCalls.Add(1)
				return r.backends.Searcher.Search(ctx, query, r.profile.MaxResultsPerQuery)
			})
			if err != nil {
				errs[i] = err
				r.log.Warn("search: keyword failed",
					zap.String("keyword", kw),
					zap.Error(err),
				)
				return nil
			}

			for j := range hits {
				hits[j].Keyword = kw
				hits[j].KeywordPriority = i
			}
			perKeyword[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var productive, failed int
	for i := range keywords {
		if errs[i] != nil {
			failed++
		} else if len(perKeyword[i]) > 0 {
			productive++
		}
	}

	r.state.SearchResults = mergeHits(perKeyword, r.profile.MaxSearchResults)

	detail := fmt.Sprintf("%d/%d keywords returned results, %d hits kept", productive, len(keywords), len(r.state.SearchResults))
	if productive == 0 {
		err := firstError(errs)
		if err == nil {
			err = eris.New("search: no keyword returned results")
		}
		return stageResult{status: model.StageStatusFailed, detail: detail, err: err}
	}
	return stageResult{status: model.StageStatusOK, degraded: failed > 0, detail: detail}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
