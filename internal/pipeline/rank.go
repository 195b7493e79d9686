package pipeline

import (
	"sort"
	"strings"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/search"
)

// Relevance weights.
const (
	titleMatchBonus     = 0.3
	snippetMatchBonus   = 0.1
	shoppingCueBonus    = 0.02
	shoppingDomainBonus = 0.1
	preferredSiteBonus  = 0.3
)

var shoppingCues = []string{
	"구매", "쇼핑", "가격", "할인", "배송", "리뷰",
	"추천", "상품", "제품", "브랜드", "모델",
}

var shoppingURLMarkers = []string{
	"coupang", "11st", "gmarket", "auction", "interpark",
	"wemakeprice", "tmon", "naver", "shopping", "store",
}

// relevanceScore rates a hit against the keyword that produced it.
func relevanceScore(h model.SearchHit, keyword string) float64 {
	title := strings.ToLower(h.Title)
	snippet := strings.ToLower(h.Snippet)
	kw := strings.ToLower(strings.TrimSpace(keyword))

	var score float64
	if kw != "" && strings.Contains(title, kw) {
		score += titleMatchBonus
	}
	if kw != "" && strings.Contains(snippet, kw) {
		score += snippetMatchBonus
	}
	for _, cue := range shoppingCues {
		if strings.Contains(title, cue) || strings.Contains(snippet, cue) {
			score += shoppingCueBonus
		}
	}
	u := strings.ToLower(h.URL)
	for _, m := range shoppingURLMarkers {
		if strings.Contains(u, m) {
			score += shoppingDomainBonus
			break
		}
	}
	return score
}

// better reports whether a should replace b when both share a normalized URL.
func better(a, b model.SearchHit) bool {
	if a.ProviderRank != b.ProviderRank {
		return a.ProviderRank < b.ProviderRank
	}
	if a.KeywordPriority != b.KeywordPriority {
		return a.KeywordPriority < b.KeywordPriority
	}
	return a.Score > b.Score
}

// mergeHits deduplicates per-keyword results by normalized URL, keeping the
// best entry, then orders them by (provider rank, keyword priority, URL) and
// keeps at most limit. The result does not depend on the order in which
// keyword searches completed.
func mergeHits(perKeyword [][]model.SearchHit, limit int) []model.SearchHit {
	best := make(map[string]model.SearchHit)
	for _, hits := range perKeyword {
		for _, h := range hits {
			key := search.NormalizeURL(h.URL)
			if key == "" {
				continue
			}
			h.Score = relevanceScore(h, h.Keyword)
			if cur, ok := best[key]; !ok || better(h, cur) {
				best[key] = h
			}
		}
	}

	out := make([]model.SearchHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProviderRank != b.ProviderRank {
			return a.ProviderRank < b.ProviderRank
		}
		if a.KeywordPriority != b.KeywordPriority {
			return a.KeywordPriority < b.KeywordPriority
		}
		return search.NormalizeURL(a.URL) < search.NormalizeURL(b.URL)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// selectPages picks up to n URLs to scrape: relevance score plus a bonus for
// preferred shopping domains and the sites named in the analysis. Ties keep
// search order.
func selectPages(hits []model.SearchHit, n int, preferred, siteHints []string) []string {
	if n <= 0 || len(hits) == 0 {
		return nil
	}

	type candidate struct {
		url   string
		score float64
	}
	cands := make([]candidate, 0, len(hits))
	for _, h := range hits {
		c := candidate{url: h.URL, score: h.Score}
		if matchesDomain(h.URL, preferred) || matchesDomain(h.URL, siteHints) {
			c.score += preferredSiteBonus
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	if len(cands) > n {
		cands = cands[:n]
	}
	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.url
	}
	return urls
}

// matchesDomain reports whether rawURL's host is, or is a subdomain of, any
// of domains.
func matchesDomain(rawURL string, domains []string) bool {
	host := search.Domain(rawURL)
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
