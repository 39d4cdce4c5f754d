package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
)

// ============================================================================
// Execution Status
// ============================================================================

// ExecutionStatus is the lifecycle state of a query execution log.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusSuccess   ExecutionStatus = "success"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// ValidExecutionStatuses contains all valid execution status values.
var ValidExecutionStatuses = []ExecutionStatus{
	ExecutionStatusPending,
	ExecutionStatusSuccess,
	ExecutionStatusFailed,
	ExecutionStatusCancelled,
}

// IsValidExecutionStatus checks if the given status is valid.
func IsValidExecutionStatus(s ExecutionStatus) bool {
	for _, v := range ValidExecutionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is modeled from s.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseExecutionStatus converts raw input into an ExecutionStatus.
func ParseExecutionStatus(raw string) (ExecutionStatus, error) {
	s := ExecutionStatus(raw)
	if !IsValidExecutionStatus(s) {
		return "", apperrors.NewValidationError("execution_status", "%q is not one of pending, success, failed, cancelled", raw)
	}
	return s, nil
}

// ============================================================================
// Error Type
// ============================================================================

// ExecutionErrorType classifies why a query execution failed.
type ExecutionErrorType string

const (
	ErrorTypeSQL        ExecutionErrorType = "sql_error"
	ErrorTypePermission ExecutionErrorType = "permission_error"
	ErrorTypeAI         ExecutionErrorType = "ai_error"
	ErrorTypeSystem     ExecutionErrorType = "system_error"
)

// ValidExecutionErrorTypes contains all valid error type values.
var ValidExecutionErrorTypes = []ExecutionErrorType{
	ErrorTypeSQL,
	ErrorTypePermission,
	ErrorTypeAI,
	ErrorTypeSystem,
}

// IsValidExecutionErrorType checks if the given error type is valid.
func IsValidExecutionErrorType(t ExecutionErrorType) bool {
	for _, v := range ValidExecutionErrorTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseExecutionErrorType converts raw input into an ExecutionErrorType.
func ParseExecutionErrorType(raw string) (ExecutionErrorType, error) {
	t := ExecutionErrorType(raw)
	if !IsValidExecutionErrorType(t) {
		return "", apperrors.NewValidationError("error_type", "%q is not one of sql_error, permission_error, ai_error, system_error", raw)
	}
	return t, nil
}

// ============================================================================
// Execution Log
// ============================================================================

// QueryExecutionLog records one attempt to answer a natural-language query,
// whether it was served from cache or generated.
// Stored in engine_query_execution_logs. Rows are never deleted by this service.
type QueryExecutionLog struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID *string   `json:"session_id,omitempty"`

	NaturalQuery   string         `json:"natural_query"`
	IntentAnalysis map[string]any `json:"intent_analysis,omitempty"`
	GeneratedSQL   *string        `json:"generated_sql,omitempty"`
	FinalSQL       *string        `json:"final_sql,omitempty"`

	ExecutionStatus ExecutionStatus `json:"execution_status"`

	// Timing and cost. Values are stored as reported; negative timings are
	// not rejected here.
	ExecutionTimeMs    int64 `json:"execution_time_ms"`
	AIProcessingTimeMs int64 `json:"ai_processing_time_ms"`
	TokensUsed         int   `json:"tokens_used"`
	CacheHit           bool  `json:"cache_hit"`
	QueryComplexity    int   `json:"query_complexity"` // 0-10
	ResultRowCount     *int  `json:"result_row_count,omitempty"`

	ErrorMessage *string             `json:"error_message,omitempty"`
	ErrorType    *ExecutionErrorType `json:"error_type,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExecutionLogFilter narrows a listing of execution logs.
type ExecutionLogFilter struct {
	UserID string
	Status ExecutionStatus
	Since  *time.Time
	Limit  int
}

// ============================================================================
// Derived classifiers
// ============================================================================

// Complexity bands.
const (
	ComplexitySimple      = "simple"
	ComplexityMedium      = "medium"
	ComplexityComplex     = "complex"
	ComplexityVeryComplex = "very complex"
)

// ComplexityLevel buckets a 0-10 complexity score.
func ComplexityLevel(score int) string {
	switch {
	case score <= 3:
		return ComplexitySimple
	case score <= 6:
		return ComplexityMedium
	case score <= 9:
		return ComplexityComplex
	default:
		return ComplexityVeryComplex
	}
}

// Performance bands.
const (
	PerformanceExcellent = "excellent"
	PerformanceGood      = "good"
	PerformanceAverage   = "average"
	PerformanceSlow      = "slow"
)

// PerformanceLevel buckets an execution time in milliseconds.
func PerformanceLevel(executionTimeMs int64) string {
	switch {
	case executionTimeMs <= 100:
		return PerformanceExcellent
	case executionTimeMs <= 500:
		return PerformanceGood
	case executionTimeMs <= 1000:
		return PerformanceAverage
	default:
		return PerformanceSlow
	}
}

// ComplexityLevel returns the complexity band of the log.
func (l *QueryExecutionLog) ComplexityLevel() string {
	return ComplexityLevel(l.QueryComplexity)
}

// PerformanceLevel returns the performance band of the log.
func (l *QueryExecutionLog) PerformanceLevel() string {
	return PerformanceLevel(l.ExecutionTimeMs)
}
