package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// MetricToolCalls counts tool calls by tool and outcome.
	MetricToolCalls = "querycache.mcp.tool_calls"
	// MetricToolDuration records tool call latency in milliseconds.
	MetricToolDuration = "querycache.mcp.tool_duration_ms"

	meterName = "github.com/ekaya-inc/ekaya-querycache/pkg/mcp"
)

// Tool call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeToolError = "tool_error"
	OutcomeFailure   = "failure"
)

// AuditLogger logs every MCP tool call with sanitized arguments and records
// call counts and latency.
type AuditLogger struct {
	logger   *zap.Logger
	calls    metric.Int64Counter
	duration metric.Float64Histogram

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger. A nil meter uses the global
// meter provider.
func NewAuditLogger(meter metric.Meter, logger *zap.Logger) (*AuditLogger, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	calls, err := meter.Int64Counter(MetricToolCalls,
		metric.WithDescription("MCP tool calls by tool and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}
	duration, err := meter.Float64Histogram(MetricToolDuration,
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	return &AuditLogger{
		logger:   logger.Named("mcp-audit"),
		calls:    calls,
		duration: duration,
	}, nil
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	elapsed := a.elapsed(id)

	outcome := OutcomeSuccess
	if result != nil && result.IsError {
		outcome = OutcomeToolError
	}
	summary := summarizeResult(result)
	flags := securityFlags(summary)

	level := zapcore.InfoLevel
	if len(flags) > 0 {
		level = zapcore.WarnLevel
	}
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Any("result", summary),
	}
	if len(flags) > 0 {
		fields = append(fields, zap.Strings("security_flags", flags))
	}
	a.logger.Log(level, "MCP tool call", fields...)
	a.record(ctx, req.Params.Name, outcome, elapsed)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	elapsed := a.elapsed(id)

	a.logger.Error("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", elapsed),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Error(err))
	a.record(ctx, req.Params.Name, OutcomeFailure, elapsed)
}

func (a *AuditLogger) record(ctx context.Context, tool, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	a.calls.Add(ctx, 1, attrs)
	a.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// maxParamSize is the maximum size of string arguments kept in audit logs.
const maxParamSize = 10240 // 10KB

// sqlStringLiteralPattern matches SQL string literals: 'value', 'it''s escaped', etc.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sensitiveKeyPattern matches argument names whose values are hashed.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|credential)`)

// sanitizeParams sanitizes tool arguments before logging.
// Applies: truncation, SQL string literal redaction, sensitive value hashing.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = sqlStringLiteralPattern.ReplaceAllString(val, "'***'")
	}
	return val
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || strings.HasSuffix(lower, "_sql")
}

// hashSensitiveValue returns a SHA-256 hash prefix so sensitive values can
// be correlated across log lines without being stored.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractResultFields(tc.Text, summary)
		break
	}
	return summary
}

// extractResultFields pulls a few well-known fields out of a JSON tool
// result without keeping the full payload.
func extractResultFields(text string, summary map[string]any) {
	var partial struct {
		Code           string `json:"code"`
		FromCache      *bool  `json:"from_cache"`
		QueryHash      string `json:"query_hash"`
		ResultMetadata *struct {
			RowCount int `json:"row_count"`
		} `json:"result_metadata"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return
	}
	if partial.Code != "" {
		summary["code"] = partial.Code
	}
	if partial.FromCache != nil {
		summary["from_cache"] = *partial.FromCache
	}
	if partial.QueryHash != "" {
		summary["query_hash"] = partial.QueryHash
	}
	if partial.ResultMetadata != nil {
		summary["row_count"] = partial.ResultMetadata.RowCount
	}
}

// securityFlags names the security-relevant conditions in a result summary.
func securityFlags(summary map[string]any) []string {
	if summary == nil {
		return nil
	}
	if code, _ := summary["code"].(string); code == "permission_error" {
		return []string{"blocked_statement"}
	}
	return nil
}
