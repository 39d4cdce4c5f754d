package llm

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single completion call when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// provider carries what both clients share: identity for error
// classification, the HTTP client and request logging.
type provider struct {
	endpoint string
	model    string
	logger   *zap.Logger
}

func newProvider(cfg *Config, defaultEndpoint, name string, logger *zap.Logger) provider {
	endpoint := defaultEndpoint
	if cfg.Endpoint != "" {
		endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return provider{
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   logger.Named(name),
	}
}

func httpClient(cfg *Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// GetModel returns the configured model name.
func (p *provider) GetModel() string {
	return p.model
}

// GetEndpoint returns the configured endpoint.
func (p *provider) GetEndpoint() string {
	return p.endpoint
}

func (p *provider) requestStarted(prompt string, temperature float64) time.Time {
	p.logger.Debug("LLM request",
		zap.String("model", p.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))
	return time.Now()
}

// failed logs and classifies a provider error.
func (p *provider) failed(start time.Time, err error) error {
	p.logger.Error("LLM request failed",
		zap.String("model", p.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return p.classify(err)
}

func (p *provider) completed(start time.Time, result *GenerateResponseResult) *GenerateResponseResult {
	p.logger.Info("LLM request completed",
		zap.String("model", p.model),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func (p *provider) classify(err error) error {
	e := ClassifyError(err)
	e.Model = p.model
	e.Endpoint = p.endpoint
	return e
}
