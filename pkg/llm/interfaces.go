// Package llm provides the chat-completion clients used to turn natural
// language into SQL: OpenAI-compatible endpoints and Anthropic.
package llm

import (
	"context"
	"time"
)

// LLMClient is a single-turn chat completion client.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse sends one system and one user message and returns the reply.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// GenerateResponseResult is a completion and its token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint  string // Base URL, e.g., "https://api.openai.com/v1"; empty uses the provider default
	Model     string
	APIKey    string // Optional for local endpoints
	MaxTokens int    // Completion budget; Anthropic requires one
	Timeout   time.Duration
}

// Ensure clients implement LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)
