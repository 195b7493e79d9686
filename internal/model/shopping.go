package model

// Intent is the kind of shopping help the user is after.
type Intent string

const (
	IntentPurchase  Intent = "purchase"
	IntentCompare   Intent = "compare"
	IntentResearch  Intent = "research"
	IntentRecommend Intent = "recommend"
)

// Intents returns every supported intent.
func Intents() []Intent {
	return []Intent{IntentPurchase, IntentCompare, IntentResearch, IntentRecommend}
}

// Valid reports whether i is one of the supported intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentPurchase, IntentCompare, IntentResearch, IntentRecommend:
		return true
	}
	return false
}

// AnalysisResult is the structured reading of the user's question.
type AnalysisResult struct {
	Intent      Intent   `json:"intent"`
	MainProduct string   `json:"main_product,omitempty"`
	PriceRange  string   `json:"price_range,omitempty"`
	Keywords    []string `json:"keywords"` // ordered, most important first
	Categories  []string `json:"categories,omitempty"`
	SiteHints   []string `json:"site_hints,omitempty"`
	Degraded    bool     `json:"degraded,omitempty"`
}

// SearchHit is one merged web search result.
type SearchHit struct {
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	Snippet         string  `json:"snippet"`
	Keyword         string  `json:"keyword"`
	Provider        string  `json:"provider,omitempty"`
	ProviderRank    int     `json:"provider_rank"`
	KeywordPriority int     `json:"keyword_priority"`
	Score           float64 `json:"score"`
}

// PageStatus is the outcome of scraping one URL.
type PageStatus string

const (
	PageStatusOK     PageStatus = "ok"
	PageStatusFailed PageStatus = "failed"
)

// ScrapedPage holds the text and facts recovered from one URL.
type ScrapedPage struct {
	URL      string        `json:"url"`
	Title    string        `json:"title,omitempty"`
	RawText  string        `json:"raw_text,omitempty"`
	Facts    []ProductFact `json:"facts,omitempty"`
	Status   PageStatus    `json:"status"`
	Degraded bool          `json:"degraded,omitempty"`
	Source   string        `json:"source,omitempty"` // scraper that produced the text
	Error    string        `json:"error,omitempty"`
}

// ProductFact is a product mention extracted from a page.
type ProductFact struct {
	Name       string            `json:"name"`
	Price      string            `json:"price,omitempty"`
	Rating     float64           `json:"rating,omitempty"` // 0..5, zero when unknown
	Attributes map[string]string `json:"attributes,omitempty"`
	SourceURL  string            `json:"source_url,omitempty"`
}

// ConversationTurn is one prior chat message.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
