package pipeline

import (
	"sync/atomic"

	"github.com/sells-group/shopping-cli/internal/model"
)

// usageCounter accumulates backend usage across concurrent item calls.
type usageCounter struct {
	llmCalls      atomic.Int64
	inputTokens   atomic.Int64
	outputTokens  atomic.Int64
	searchCalls   atomic.Int64
	scrapeCalls   atomic.Int64
	scrapeCredits atomic.Int64
	readerTokens  atomic.Int64
}

func (u *usageCounter) snapshot() model.Usage {
	return model.Usage{
		LLMCalls:      int(u.llmCalls.Load()),
		InputTokens:   int(u.inputTokens.Load()),
		OutputTokens:  int(u.outputTokens.Load()),
		SearchCalls:   int(u.searchCalls.Load()),
		ScrapeCalls:   int(u.scrapeCalls.Load()),
		ScrapeCredits: int(u.scrapeCredits.Load()),
		ReaderTokens:  int(u.readerTokens.Load()),
	}
}
