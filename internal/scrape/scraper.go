package scrape

import (
	"context"
	"fmt"
)

// Page is the text content recovered from one URL.
type Page struct {
	URL        string
	Title      string
	Text       string // markdown or plain text
	StatusCode int
}

// Result holds a scraped page with its source and the cost it incurred.
type Result struct {
	Page         Page
	Source       string // e.g. "local_http", "jina", "firecrawl"
	Credits      int    // Firecrawl credits consumed
	ReaderTokens int    // Jina Reader tokens consumed
}

// Scraper fetches a single URL and returns its content. Implementations do
// not retry; callers wrap calls in their retry policy.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// StatusError is returned when a page answers with an HTTP error status.
type StatusError struct {
	Scraper    string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d from %s", e.Scraper, e.StatusCode, e.URL)
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }
