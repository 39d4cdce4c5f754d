package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querycache/pkg/audit"
	"github.com/ekaya-inc/ekaya-querycache/pkg/llm"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/prompts"
	"github.com/ekaya-inc/ekaya-querycache/pkg/retry"
	"github.com/ekaya-inc/ekaya-querycache/pkg/sql"
)

// LLMGeneratorConfig tunes LLMGenerator.
type LLMGeneratorConfig struct {
	Temperature float64
	// MaxRows caps the rows returned by generated SQL.
	MaxRows int
	// Retry controls retries of retryable LLM errors. Nil uses retry.DefaultConfig.
	Retry   *retry.Config
	Breaker llm.CircuitBreakerConfig
}

// LLMGenerator prompts an LLM for SQL, checks it is read-only and runs it
// against the datasource.
type LLMGenerator struct {
	client   llm.LLMClient
	executor datasource.QueryExecutor
	breaker  *llm.CircuitBreaker
	auditor  *audit.SecurityAuditor
	cfg      LLMGeneratorConfig
	logger   *zap.Logger
}

// NewLLMGenerator creates a generator over an LLM client and a datasource.
func NewLLMGenerator(client llm.LLMClient, executor datasource.QueryExecutor, cfg LLMGeneratorConfig, logger *zap.Logger) *LLMGenerator {
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Breaker.Threshold <= 0 {
		cfg.Breaker = llm.DefaultCircuitBreakerConfig()
	}
	named := logger.Named("llm-generator")
	if cfg.Breaker.OnStateChange == nil {
		cfg.Breaker.OnStateChange = func(from, to llm.CircuitState) {
			named.Warn("LLM circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
				zap.String("model", client.GetModel()))
		}
	}
	return &LLMGenerator{
		client:   client,
		executor: executor,
		breaker:  llm.NewCircuitBreaker(cfg.Breaker),
		auditor:  audit.NewSecurityAuditor(logger),
		cfg:      cfg,
		logger:   named,
	}
}

var _ Generator = (*LLMGenerator)(nil)

// Generate implements Generator. Context cancellation is returned unclassified.
func (g *LLMGenerator) Generate(ctx context.Context, naturalQuery string, qctx models.QueryContext) (*GenerationResult, error) {
	if findings := sql.CheckContextForInjection(qctx); len(findings) > 0 {
		paths := make([]string, len(findings))
		for i, f := range findings {
			paths[i] = f.Path
			g.auditor.LogInjectionAttempt(ctx, audit.SQLInjectionDetails{
				ContextPath:  f.Path,
				ContextValue: f.Value,
				Fingerprint:  f.Fingerprint,
			})
		}
		return nil, NewGenerationError(models.ErrorTypePermission,
			fmt.Sprintf("context values rejected: %s", strings.Join(paths, ", ")), nil)
	}

	answer, usage, aiMs, err := g.askModel(ctx, naturalQuery, qctx)
	if err != nil {
		return nil, err
	}

	statement, err := sql.ValidateReadOnly(answer.SQL)
	if err != nil {
		if errors.Is(err, sql.ErrNotReadOnly) {
			g.auditor.LogBlockedStatement(ctx, audit.BlockedStatementDetails{SQL: answer.SQL, Reason: err.Error()})
			return nil, NewGenerationError(models.ErrorTypePermission, "generated SQL rejected", err)
		}
		g.logger.Warn("Rejected generated SQL",
			zap.String("sql", logging.SanitizeQuery(answer.SQL)),
			zap.Error(err))
		return nil, NewGenerationError(models.ErrorTypeSQL, "generated SQL rejected", err)
	}

	execStart := time.Now()
	result, err := g.executor.Query(ctx, statement, g.cfg.MaxRows)
	execMs := time.Since(execStart).Milliseconds()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.logger.Warn("Generated SQL failed",
			zap.String("sql", logging.SanitizeQuery(statement)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, NewGenerationError(models.ErrorTypeSQL, "query execution failed", err)
	}

	metadata := models.ResultMetadata{
		RowCount:        result.RowCount,
		Columns:         make([]models.ColumnInfo, len(result.Columns)),
		ExecutionTimeMs: execMs,
	}
	for i, c := range result.Columns {
		metadata.Columns[i] = models.ColumnInfo{Name: c.Name, Type: c.Type}
	}
	if limit := datasource.EffectiveLimit(g.cfg.MaxRows); result.RowCount >= limit {
		metadata.Warnings = append(metadata.Warnings, fmt.Sprintf("result truncated to %d rows", limit))
	}

	intent := map[string]any{
		"intent": string(answer.Intent),
		"model":  g.client.GetModel(),
	}
	if len(answer.Tables) > 0 {
		intent["tables"] = []string(answer.Tables)
	}

	return &GenerationResult{
		SQL:              statement,
		ResultData:       result.Rows,
		ResultMetadata:   metadata,
		TokensUsed:       usage,
		ProcessingTimeMs: aiMs,
		IntentAnalysis:   intent,
	}, nil
}

// askModel calls the LLM through the circuit breaker with retries and parses
// its JSON answer. Tokens are summed across attempts.
func (g *LLMGenerator) askModel(ctx context.Context, naturalQuery string, qctx models.QueryContext) (*prompts.SQLGenerationResponse, int, int64, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, 0, 0, NewGenerationError(models.ErrorTypeAI, "llm unavailable", err)
	}

	prompt := prompts.BuildSQLGenerationPrompt(naturalQuery, g.executor.Dialect(), qctx, g.cfg.MaxRows)
	tokens := 0
	start := time.Now()

	resp, err := retry.DoWithResultIfRetryable(ctx, g.cfg.Retry, func() (*llm.GenerateResponseResult, error) {
		r, err := g.client.GenerateResponse(ctx, prompt, prompts.SQLGenerationSystemMessage, g.cfg.Temperature)
		if r != nil {
			tokens += r.TotalTokens
		}
		return r, err
	})
	aiMs := time.Since(start).Milliseconds()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, tokens, aiMs, ctxErr
		}
		g.breaker.RecordFailure()
		g.logger.Error("LLM request failed",
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("state", g.breaker.State().String()),
			zap.Error(err))
		return nil, tokens, aiMs, NewGenerationError(models.ErrorTypeAI, "llm request failed", err)
	}
	g.breaker.RecordSuccess()

	answer, err := llm.ParseJSONResponse[prompts.SQLGenerationResponse](resp.Content)
	if err != nil {
		g.logger.Warn("Unparseable LLM response",
			zap.String("content", logging.TruncateString(resp.Content, 200)),
			zap.Error(err))
		return nil, tokens, aiMs, NewGenerationError(models.ErrorTypeAI, "llm response was not valid JSON", err)
	}
	if strings.TrimSpace(answer.SQL) == "" {
		return nil, tokens, aiMs, NewGenerationError(models.ErrorTypeAI, "llm response contained no SQL", nil)
	}

	g.logger.Debug("LLM produced SQL",
		zap.String("sql", logging.SanitizeQuery(answer.SQL)),
		zap.Int("tokens", tokens),
		zap.Int64("ai_ms", aiMs))
	return &answer, tokens, aiMs, nil
}
