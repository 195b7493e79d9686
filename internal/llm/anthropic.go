package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/pkg/anthropic"
)

// DefaultAnthropicModel is used when neither the request nor the adapter names one.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicGenerator generates text with the Anthropic Messages API.
type AnthropicGenerator struct {
	client   anthropic.Client
	model    string
	cacheTTL string
}

// NewAnthropicGenerator wraps an Anthropic client. System prompts are sent
// with a cache breakpoint of cacheTTL when it is non-empty.
func NewAnthropicGenerator(client anthropic.Client, defaultModel, cacheTTL string) *AnthropicGenerator {
	if defaultModel == "" {
		defaultModel = DefaultAnthropicModel
	}
	return &AnthropicGenerator{client: client, model: defaultModel, cacheTTL: cacheTTL}
}

// Name implements Generator.
func (g *AnthropicGenerator) Name() string { return "anthropic" }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = g.model
	}
	temp := req.Temperature

	msgReq := anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   int64(maxTokens(req)),
		Messages:    anthropicMessages(req),
		Temperature: &temp,
	}
	if req.System != "" {
		if g.cacheTTL != "" {
			msgReq.System = anthropic.BuildCachedSystemBlocks(req.System, g.cacheTTL)
		} else {
			msgReq.System = []anthropic.SystemBlock{{Text: req.System}}
		}
	}

	resp, err := g.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, classify(eris.Wrapf(err, "llm: anthropic %s", req.Stage))
	}
	resp.Usage.LogCost(modelID, req.Stage)

	text := resp.Text()
	if err := checkText(g.Name(), text); err != nil {
		return nil, err
	}

	return &Response{
		Text:         text,
		Provider:     g.Name(),
		Model:        modelID,
		InputTokens:  int(resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func anthropicMessages(req Request) []anthropic.Message {
	msgs := make([]anthropic.Message, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := model.RoleUser
		if turn.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{Role: role, Content: turn.Content})
	}
	return append(msgs, anthropic.Message{Role: model.RoleUser, Content: userPrompt(req)})
}
