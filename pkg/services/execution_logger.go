package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/repositories"
)

// LogHandle refers to a pending execution log opened by Begin.
type LogHandle struct {
	ID        uuid.UUID
	StartedAt time.Time
}

// ExecutionOutcome is what Complete writes onto a pending log.
type ExecutionOutcome struct {
	Status models.ExecutionStatus

	GeneratedSQL   string
	FinalSQL       string
	IntentAnalysis map[string]any

	ExecutionTimeMs    int64
	AIProcessingTimeMs int64
	TokensUsed         int
	CacheHit           bool
	QueryComplexity    int
	ResultRowCount     *int

	ErrorType    models.ExecutionErrorType
	ErrorMessage string
}

// SuccessOutcome builds the outcome of an answered query.
func SuccessOutcome(sql string, rowCount int) ExecutionOutcome {
	return ExecutionOutcome{
		Status:         models.ExecutionStatusSuccess,
		GeneratedSQL:   sql,
		FinalSQL:       sql,
		ResultRowCount: &rowCount,
	}
}

// FailedOutcome builds the outcome of a query that could not be answered.
func FailedOutcome(errType models.ExecutionErrorType, message string) ExecutionOutcome {
	return ExecutionOutcome{
		Status:       models.ExecutionStatusFailed,
		ErrorType:    errType,
		ErrorMessage: message,
	}
}

// CancelledOutcome builds the outcome of a query abandoned by its caller.
func CancelledOutcome(message string) ExecutionOutcome {
	return ExecutionOutcome{
		Status:       models.ExecutionStatusCancelled,
		ErrorMessage: message,
	}
}

func (o ExecutionOutcome) validate() error {
	switch o.Status {
	case models.ExecutionStatusSuccess:
		if o.ErrorType != "" {
			return apperrors.NewValidationError("error_type", "must be empty for a successful execution")
		}
	case models.ExecutionStatusFailed:
		if !models.IsValidExecutionErrorType(o.ErrorType) {
			return apperrors.NewValidationError("error_type", "%q is not a known error type", o.ErrorType)
		}
	case models.ExecutionStatusCancelled:
	default:
		return apperrors.NewValidationError("execution_status", "%q is not a terminal status", o.Status)
	}
	if o.QueryComplexity < 0 || o.QueryComplexity > MaxComplexityScore {
		return apperrors.NewValidationError("query_complexity", "must be between 0 and %d, got %d", MaxComplexityScore, o.QueryComplexity)
	}
	return nil
}

// ExecutionLogger records the lifecycle of each query execution.
type ExecutionLogger interface {
	// Begin opens a pending log for a query.
	Begin(ctx context.Context, userID, naturalQuery string, sessionID *string) (*LogHandle, error)

	// Complete moves a pending log to the outcome's terminal status.
	// Completing a log that is no longer pending returns apperrors.ErrInvalidTransition.
	Complete(ctx context.Context, handle *LogHandle, outcome ExecutionOutcome) (*models.QueryExecutionLog, error)

	// Get returns (nil, nil) when no log exists for id.
	Get(ctx context.Context, id uuid.UUID) (*models.QueryExecutionLog, error)

	// ListRecent returns logs newest first.
	ListRecent(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.QueryExecutionLog, error)
}

type executionLogger struct {
	repo   repositories.ExecutionLogRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewExecutionLogger creates an ExecutionLogger over repo.
func NewExecutionLogger(repo repositories.ExecutionLogRepository, logger *zap.Logger) ExecutionLogger {
	return &executionLogger{
		repo:   repo,
		logger: logger.Named("execution-logger"),
		now:    time.Now,
	}
}

var _ ExecutionLogger = (*executionLogger)(nil)

func (s *executionLogger) Begin(ctx context.Context, userID, naturalQuery string, sessionID *string) (*LogHandle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(naturalQuery) == "" {
		return nil, apperrors.NewValidationError("natural_query", "is required")
	}

	now := s.now()
	log := &models.QueryExecutionLog{
		ID:              uuid.New(),
		UserID:          userID,
		SessionID:       sessionID,
		NaturalQuery:    naturalQuery,
		ExecutionStatus: models.ExecutionStatusPending,
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to begin execution log: %w", err)
	}

	return &LogHandle{ID: log.ID, StartedAt: now}, nil
}

func (s *executionLogger) Complete(ctx context.Context, handle *LogHandle, outcome ExecutionOutcome) (*models.QueryExecutionLog, error) {
	if handle == nil {
		return nil, apperrors.NewValidationError("handle", "is required")
	}
	if err := outcome.validate(); err != nil {
		return nil, err
	}

	completedAt := s.now()
	log := &models.QueryExecutionLog{
		ID:                 handle.ID,
		IntentAnalysis:     outcome.IntentAnalysis,
		GeneratedSQL:       optionalString(outcome.GeneratedSQL),
		FinalSQL:           optionalString(outcome.FinalSQL),
		ExecutionStatus:    outcome.Status,
		ExecutionTimeMs:    outcome.ExecutionTimeMs,
		AIProcessingTimeMs: outcome.AIProcessingTimeMs,
		TokensUsed:         outcome.TokensUsed,
		CacheHit:           outcome.CacheHit,
		QueryComplexity:    outcome.QueryComplexity,
		ResultRowCount:     outcome.ResultRowCount,
		ErrorMessage:       optionalString(outcome.ErrorMessage),
		CompletedAt:        &completedAt,
	}
	if outcome.ErrorType != "" {
		errType := outcome.ErrorType
		log.ErrorType = &errType
	}

	if err := s.repo.Complete(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to complete execution log: %w", err)
	}

	completed, err := s.repo.Get(ctx, handle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload execution log: %w", err)
	}
	if completed == nil {
		return nil, fmt.Errorf("execution log %s: %w", handle.ID, apperrors.ErrNotFound)
	}

	fields := []zap.Field{
		zap.String("log_id", completed.ID.String()),
		zap.String("status", string(completed.ExecutionStatus)),
		zap.Bool("cache_hit", completed.CacheHit),
		zap.Int64("execution_time_ms", completed.ExecutionTimeMs),
		zap.String("performance", completed.PerformanceLevel()),
	}
	if completed.ExecutionStatus == models.ExecutionStatusSuccess {
		s.logger.Debug("Query execution completed", fields...)
	} else {
		fields = append(fields,
			zap.String("natural_query", logging.SanitizeQuery(completed.NaturalQuery)),
			zap.String("error_message", logging.TruncateString(outcome.ErrorMessage, 200)))
		if completed.ErrorType != nil {
			fields = append(fields, zap.String("error_type", string(*completed.ErrorType)))
		}
		s.logger.Warn("Query execution did not succeed", fields...)
	}
	return completed, nil
}

func (s *executionLogger) Get(ctx context.Context, id uuid.UUID) (*models.QueryExecutionLog, error) {
	log, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}
	return log, nil
}

func (s *executionLogger) ListRecent(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.QueryExecutionLog, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	return logs, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
