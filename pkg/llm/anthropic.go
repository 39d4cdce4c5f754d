package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// DefaultAnthropicMaxTokens is used when Config.MaxTokens is not set; the
// Messages API requires a budget.
const DefaultAnthropicMaxTokens = 2000

const anthropicEndpoint = "https://api.anthropic.com/v1"

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	provider
	client    *anthropic.Client
	maxTokens int
}

// NewAnthropicClient creates an Anthropic client. An API key is required.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	p := newProvider(cfg, anthropicEndpoint, "llm-anthropic", logger)
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(httpClient(cfg))}
	if p.endpoint != anthropicEndpoint {
		opts = append(opts, anthropic.WithBaseURL(p.endpoint))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		provider:  p,
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		maxTokens: maxTokens,
	}, nil
}

// GenerateResponse sends a single-turn message and returns the first text block.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	start := c.requestStarted(prompt, temperature)
	temp := float32(temperature)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   c.maxTokens,
		Temperature: &temp,
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
	})
	if err != nil {
		return nil, c.failed(start, err)
	}

	content := firstText(resp)
	if content == "" {
		return nil, c.classify(NewError(ErrorTypeResponse, "no text content in response", true, nil))
	}

	return c.completed(start, &GenerateResponseResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}), nil
}

func firstText(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}
