package model

import "time"

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// Usage counts backend calls made during a run.
type Usage struct {
	LLMCalls      int `json:"llm_calls"`
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	SearchCalls   int `json:"search_calls"`
	ScrapeCalls   int `json:"scrape_calls"`
	ScrapeCredits int `json:"scrape_credits"`
	ReaderTokens  int `json:"reader_tokens"`
}

// Add merges usage from another instance.
func (u *Usage) Add(other Usage) {
	u.LLMCalls += other.LLMCalls
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.SearchCalls += other.SearchCalls
	u.ScrapeCalls += other.ScrapeCalls
	u.ScrapeCredits += other.ScrapeCredits
	u.ReaderTokens += other.ReaderTokens
}

// RunResult is what a caller gets back from one question.
type RunResult struct {
	RunID            string                 `json:"run_id"`
	Query            string                 `json:"query"`
	Profile          string                 `json:"profile"`
	Outcome          Outcome                `json:"outcome"`
	FinalAnswer      string                 `json:"final_answer,omitempty"`
	FailureMessage   string                 `json:"failure_message,omitempty"`
	Trace            []StageEntry           `json:"trace"`
	Analysis         *AnalysisResult        `json:"analysis,omitempty"`
	SearchResults    []SearchHit            `json:"search_results,omitempty"`
	ScrapedPages     map[string]ScrapedPage `json:"scraped_pages,omitempty"`
	Messages         []ConversationTurn     `json:"messages,omitempty"`
	Usage            Usage                  `json:"usage"`
	EstimatedCostUSD float64                `json:"estimated_cost_usd"`
	Duration         time.Duration          `json:"-"`
	DurationMS       int64                  `json:"duration_ms"`
}
