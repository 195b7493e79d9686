// Package llm defines the language-generation contract used by the pipeline
// stages and adapters for the supported providers.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = eris.New("llm: empty completion")

// Request is a single generation call.
type Request struct {
	// Stage names the pipeline stage for cost attribution.
	Stage string

	System     string
	Prompt     string
	SchemaHint string // appended to the prompt when structured output is wanted
	History    []model.ConversationTurn

	Model       string // empty uses the adapter default
	MaxTokens   int
	Temperature float64
}

// Response is the provider-neutral result of a generation call.
type Response struct {
	Text         string `json:"text"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Generator produces text from a prompt. Implementations do not retry;
// the caller owns the retry policy.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

const defaultMaxTokens = 1024

func userPrompt(req Request) string {
	if req.SchemaHint == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\n" + req.SchemaHint
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// checkText turns a blank completion into a retryable failure.
func checkText(provider, text string) error {
	if strings.TrimSpace(text) == "" {
		return resilience.NewTransientError(eris.Wrap(ErrEmptyCompletion, provider), 0)
	}
	return nil
}

// classify tags provider errors that carry an HTTP status so the retry
// executor sees 4xx as permanent and 408/429/5xx as transient.
func classify(err error) error {
	var sc resilience.StatusCoder
	if errors.As(err, &sc) {
		return resilience.ClassifyHTTPStatus(err, sc.HTTPStatusCode())
	}
	return err
}
