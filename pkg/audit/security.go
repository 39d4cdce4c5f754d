// Package audit provides security audit logging for SIEM consumption.
// Events are logged as structured JSON under the "security_audit" logger so
// they can be filtered and alerted on separately from application logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a query context value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventBlockedStatement is logged when generated SQL is not a single read-only statement.
	EventBlockedStatement SecurityEventType = "blocked_statement"
)

// Severity levels attached to events.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// maxAuditValueLen bounds user-supplied values copied into events.
const maxAuditValueLen = 200

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  SecurityEventType `json:"event_type"`
	QueryLogID uuid.UUID         `json:"query_log_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Details    any               `json:"details"`
	Severity   string            `json:"severity"`
}

// SQLInjectionDetails describes a context value libinjection flagged.
type SQLInjectionDetails struct {
	ContextPath  string `json:"context_path"`
	ContextValue string `json:"context_value"`
	Fingerprint  string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// BlockedStatementDetails describes generated SQL that was refused before execution.
type BlockedStatementDetails struct {
	SQL    string `json:"sql"`
	Reason string `json:"reason"`
}

// Requester identifies who a query runs for. It travels in the context so
// components below the pipeline can attribute events without extra parameters.
type Requester struct {
	UserID     string
	QueryLogID uuid.UUID
}

type requesterKey struct{}

// WithRequester returns a copy of ctx carrying r.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFromContext returns the requester stored by WithRequester.
func RequesterFromContext(ctx context.Context) (Requester, bool) {
	r, ok := ctx.Value(requesterKey{}).(Requester)
	return r, ok
}

// SecurityAuditor logs security events.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates an auditor logging under the "security_audit" namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{
		logger: logger.Named("security_audit"),
		now:    time.Now,
	}
}

// LogInjectionAttempt records a flagged context value at ERROR level.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details SQLInjectionDetails) {
	details.ContextValue = logging.TruncateString(details.ContextValue, maxAuditValueLen)
	event := a.event(ctx, EventSQLInjectionAttempt, SeverityCritical, details)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("query_log_id", event.QueryLogID.String()),
		zap.String("user_id", event.UserID),
		zap.String("context_path", details.ContextPath),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", event.Severity),
	)
}

// LogBlockedStatement records generated SQL refused by the read-only check.
// Logged at WARN: the statement came from the model, not directly from the user.
func (a *SecurityAuditor) LogBlockedStatement(ctx context.Context, details BlockedStatementDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	event := a.event(ctx, EventBlockedStatement, SeverityWarning, details)

	a.logger.Warn("Generated statement blocked",
		zap.String("event_json", marshalEvent(event)),
		zap.String("query_log_id", event.QueryLogID.String()),
		zap.String("user_id", event.UserID),
		zap.String("reason", details.Reason),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, severity string, details any) SecurityEvent {
	r, _ := RequesterFromContext(ctx)
	return SecurityEvent{
		Timestamp:  a.now().UTC(),
		EventType:  eventType,
		QueryLogID: r.QueryLogID,
		UserID:     r.UserID,
		Details:    details,
		Severity:   severity,
	}
}

func marshalEvent(event SecurityEvent) string {
	// Known types only; marshaling cannot fail.
	b, _ := json.Marshal(event)
	return string(b)
}
