package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
)

// DefaultOpenAIModel is used when neither the request nor the adapter names one.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible endpoints
	Model      string
	HTTPClient *http.Client
}

// OpenAIGenerator generates text with the OpenAI chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates an OpenAI adapter.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("llm: openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}, nil
}

// Name implements Generator.
func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = g.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(req),
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   maxTokens(req),
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, classifyOpenAI(eris.Wrapf(err, "llm: openai %s", req.Stage))
	}

	zap.L().Debug("openai usage",
		zap.String("model", modelID),
		zap.String("stage", req.Stage),
		zap.Int("input_tokens", resp.Usage.PromptTokens),
		zap.Int("output_tokens", resp.Usage.CompletionTokens),
	)

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	if err := checkText(g.Name(), text); err != nil {
		return nil, err
	}

	return &Response{
		Text:         text,
		Provider:     g.Name(),
		Model:        modelID,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// classifyOpenAI maps go-openai's error types, which expose the status as a
// field rather than a method, onto the retry classification.
func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.ClassifyHTTPStatus(err, reqErr.HTTPStatusCode)
	}
	return err
}
