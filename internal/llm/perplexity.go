package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/pkg/perplexity"
)

// PerplexityGenerator generates text with Perplexity's online models.
type PerplexityGenerator struct {
	client perplexity.Client
	model  string
}

// NewPerplexityGenerator wraps a Perplexity client.
func NewPerplexityGenerator(client perplexity.Client, defaultModel string) *PerplexityGenerator {
	return &PerplexityGenerator{client: client, model: defaultModel}
}

// Name implements Generator.
func (g *PerplexityGenerator) Name() string { return "perplexity" }

// Generate implements Generator.
func (g *PerplexityGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = g.model
	}
	temp := req.Temperature
	limit := maxTokens(req)

	msgs := make([]perplexity.Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		role := model.RoleUser
		if turn.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		msgs = append(msgs, perplexity.Message{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, perplexity.Message{Role: model.RoleUser, Content: userPrompt(req)})

	resp, err := g.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       modelID,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   &limit,
	})
	if err != nil {
		return nil, classify(eris.Wrapf(err, "llm: perplexity %s", req.Stage))
	}

	zap.L().Debug("perplexity usage",
		zap.String("model", resp.Model),
		zap.String("stage", req.Stage),
		zap.Int("input_tokens", resp.Usage.PromptTokens),
		zap.Int("output_tokens", resp.Usage.CompletionTokens),
		zap.Int("citations", len(resp.Citations)),
	)

	text := resp.Text()
	if err := checkText(g.Name(), text); err != nil {
		return nil, err
	}

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = modelID
	}
	return &Response{
		Text:         text,
		Provider:     g.Name(),
		Model:        usedModel,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
