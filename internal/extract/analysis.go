package extract

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
)

// MaxKeywords caps the number of search keywords kept from an analysis.
const MaxKeywords = 8

// intentAliases maps the labels models tend to return onto the closed set.
var intentAliases = map[string]model.Intent{
	"purchase":   model.IntentPurchase,
	"buy":        model.IntentPurchase,
	"구매":         model.IntentPurchase,
	"compare":    model.IntentCompare,
	"comparison": model.IntentCompare,
	"비교":         model.IntentCompare,
	"research":   model.IntentResearch,
	"info":       model.IntentResearch,
	"정보수집":       model.IntentResearch,
	"정보":         model.IntentResearch,
	"recommend":  model.IntentRecommend,
	"추천":         model.IntentRecommend,
}

// AnalysisSchema validates the analyze stage output.
type AnalysisSchema struct{}

// Name implements Schema.
func (AnalysisSchema) Name() string { return "analysis" }

// Validate implements Schema. Keywords are trimmed, deduplicated and capped
// at MaxKeywords; at least one must survive. The intent must map onto one of
// the supported values.
func (AnalysisSchema) Validate(a *model.AnalysisResult) error {
	a.Degraded = false
	a.Keywords = normalizeList(a.Keywords, MaxKeywords)
	if len(a.Keywords) == 0 {
		return eris.New("keywords: at least one required")
	}

	intent, ok := intentAliases[strings.ToLower(strings.TrimSpace(string(a.Intent)))]
	if !ok {
		return eris.Errorf("intent: %q is not one of purchase, compare, research, recommend", a.Intent)
	}
	a.Intent = intent

	a.MainProduct = strings.TrimSpace(a.MainProduct)
	a.PriceRange = strings.TrimSpace(a.PriceRange)
	a.Categories = normalizeList(a.Categories, 0)
	a.SiteHints = normalizeList(a.SiteHints, 0)
	return nil
}

var (
	keywordArrayRe = regexp.MustCompile(`(?s)"(?:keywords|search_keywords)"\s*:\s*\[([^\]]*)`)
	jsonFieldRe    = regexp.MustCompile(`"[A-Za-z_]+"\s*:`)
	quotedRe       = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	listItemRe     = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
	mainProductRe  = regexp.MustCompile(`"main_product"\s*:\s*"([^"]*)"`)
	priceRangeRe   = regexp.MustCompile(`"price_range"\s*:\s*"([^"]*)"`)
)

// jsonKeys are quoted tokens that should never be mistaken for keywords.
var jsonKeys = map[string]bool{
	"intent": true, "main_product": true, "price_range": true, "keywords": true,
	"search_keywords": true, "categories": true, "site_hints": true,
	"purchase": true, "compare": true, "research": true, "recommend": true,
}

// Fallback implements Schema. Text shaped like a JSON object only yields
// keywords from its keywords array; other field values are never search
// terms. Free text falls back to list items, then to any quoted strings.
func (AnalysisSchema) Fallback(text string) (model.AnalysisResult, bool) {
	a := model.AnalysisResult{
		Intent:   InferIntent(text),
		Degraded: true,
	}
	if m := mainProductRe.FindStringSubmatch(text); m != nil {
		a.MainProduct = strings.TrimSpace(m[1])
	}
	if m := priceRangeRe.FindStringSubmatch(text); m != nil {
		a.PriceRange = strings.TrimSpace(m[1])
	}

	var candidates []string
	switch {
	case keywordArrayRe.MatchString(text):
		m := keywordArrayRe.FindStringSubmatch(text)
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			candidates = append(candidates, q[1])
		}
	case jsonFieldRe.MatchString(text):
		// keywords missing, null or not an array
	default:
		for _, m := range listItemRe.FindAllStringSubmatch(text, -1) {
			candidates = append(candidates, strings.Trim(m[1], `"'`+"`"))
		}
		if len(candidates) == 0 {
			for _, q := range quotedRe.FindAllStringSubmatch(text, -1) {
				if !jsonKeys[strings.ToLower(q[1])] {
					candidates = append(candidates, q[1])
				}
			}
		}
	}

	a.Keywords = normalizeList(candidates, MaxKeywords)
	return a, len(a.Keywords) > 0
}

// intentCues are checked in order; the first group with a hit wins.
var intentCues = []struct {
	intent model.Intent
	words  []string
}{
	{model.IntentCompare, []string{"비교", "차이", " vs", "vs.", "compare", "versus", "어떤 게 나", "뭐가 나"}},
	{model.IntentRecommend, []string{"추천", "recommend", "best", "좋은", "인기"}},
	{model.IntentPurchase, []string{"구매", "구입", "사고 싶", "살까", "최저가", "할인", "buy", "purchase", "order"}},
	{model.IntentResearch, []string{"정보", "알려", "뭐야", "무엇", "review", "리뷰", "후기", "spec", "사양"}},
}

// InferIntent guesses the intent from cue words, defaulting to research.
func InferIntent(text string) model.Intent {
	lower := strings.ToLower(text)
	for _, cue := range intentCues {
		for _, w := range cue.words {
			if strings.Contains(lower, w) {
				return cue.intent
			}
		}
	}
	return model.IntentResearch
}

// normalizeList trims entries, drops blanks and case-insensitive duplicates,
// and truncates to limit when limit > 0.
func normalizeList(in []string, limit int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
