package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client talks to OpenAI and any endpoint speaking the same chat
// completions API.
type Client struct {
	provider
	client    *openai.Client
	maxTokens int
}

// NewClient creates an OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	p := newProvider(cfg, openai.DefaultConfig("").BaseURL, "llm", logger)
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = p.endpoint
	oc.HTTPClient = httpClient(cfg)

	return &Client{
		provider:  p,
		client:    openai.NewClientWithConfig(oc),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// GenerateResponse sends one system and one user message.
func (c *Client) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	start := c.requestStarted(prompt, temperature)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, c.failed(start, err)
	}
	if len(resp.Choices) == 0 {
		return nil, c.classify(NewError(ErrorTypeResponse, "no choices in response", true, nil))
	}

	return c.completed(start, &GenerateResponseResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}), nil
}
