package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/database"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// Listing bounds shared by the log and feedback repositories.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return DefaultListLimit
	}
	return limit
}

// ExecutionLogRepository provides append-mostly storage for query execution logs.
type ExecutionLogRepository interface {
	Create(ctx context.Context, log *models.QueryExecutionLog) error
	// Get returns (nil, nil) when no log exists for id.
	Get(ctx context.Context, id uuid.UUID) (*models.QueryExecutionLog, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// Complete writes the outcome fields of log, but only while the stored row
	// is still pending. Returns apperrors.ErrNotFound or
	// apperrors.ErrInvalidTransition when nothing was written.
	Complete(ctx context.Context, log *models.QueryExecutionLog) error
	// List returns logs newest first.
	List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.QueryExecutionLog, error)
	Stats(ctx context.Context) (*models.ExecutionStats, error)
}

type executionLogRepository struct {
	db *database.DB
}

// NewExecutionLogRepository creates a PostgreSQL-backed execution log repository.
func NewExecutionLogRepository(db *database.DB) ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

var _ ExecutionLogRepository = (*executionLogRepository)(nil)

const executionLogColumns = `
	id, user_id, session_id, natural_query, intent_analysis,
	generated_sql, final_sql, execution_status,
	execution_time_ms, ai_processing_time_ms, tokens_used,
	cache_hit, query_complexity, result_row_count,
	error_message, error_type, created_at, completed_at`

func (r *executionLogRepository) Create(ctx context.Context, log *models.QueryExecutionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	intentJSON, err := marshalJSONBany(log.IntentAnalysis)
	if err != nil {
		return fmt.Errorf("failed to marshal intent_analysis: %w", err)
	}

	query := `
		INSERT INTO engine_query_execution_logs (` + executionLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Exec(ctx, query,
		log.ID,
		log.UserID,
		log.SessionID,
		log.NaturalQuery,
		intentJSON,
		log.GeneratedSQL,
		log.FinalSQL,
		log.ExecutionStatus,
		log.ExecutionTimeMs,
		log.AIProcessingTimeMs,
		log.TokensUsed,
		log.CacheHit,
		log.QueryComplexity,
		log.ResultRowCount,
		log.ErrorMessage,
		log.ErrorType,
		log.CreatedAt,
		log.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution log: %w", err)
	}
	return nil
}

func (r *executionLogRepository) Get(ctx context.Context, id uuid.UUID) (*models.QueryExecutionLog, error) {
	query := `SELECT ` + executionLogColumns + ` FROM engine_query_execution_logs WHERE id = $1`

	log, err := scanExecutionLog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}
	return log, nil
}

func (r *executionLogRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM engine_query_execution_logs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check execution log: %w", err)
	}
	return exists, nil
}

func (r *executionLogRepository) Complete(ctx context.Context, log *models.QueryExecutionLog) error {
	intentJSON, err := marshalJSONBany(log.IntentAnalysis)
	if err != nil {
		return fmt.Errorf("failed to marshal intent_analysis: %w", err)
	}

	query := `
		UPDATE engine_query_execution_logs
		SET intent_analysis = $2,
		    generated_sql = $3,
		    final_sql = $4,
		    execution_status = $5,
		    execution_time_ms = $6,
		    ai_processing_time_ms = $7,
		    tokens_used = $8,
		    cache_hit = $9,
		    query_complexity = $10,
		    result_row_count = $11,
		    error_message = $12,
		    error_type = $13,
		    completed_at = $14
		WHERE id = $1 AND execution_status = 'pending'`

	tag, err := r.db.Exec(ctx, query,
		log.ID,
		intentJSON,
		log.GeneratedSQL,
		log.FinalSQL,
		log.ExecutionStatus,
		log.ExecutionTimeMs,
		log.AIProcessingTimeMs,
		log.TokensUsed,
		log.CacheHit,
		log.QueryComplexity,
		log.ResultRowCount,
		log.ErrorMessage,
		log.ErrorType,
		log.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete execution log: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	exists, err := r.Exists(ctx, log.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("execution log %s: %w", log.ID, apperrors.ErrNotFound)
	}
	return fmt.Errorf("execution log %s is no longer pending: %w", log.ID, apperrors.ErrInvalidTransition)
}

func (r *executionLogRepository) List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.QueryExecutionLog, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("execution_status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.Since)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM engine_query_execution_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, executionLogColumns, where, argIdx)
	args = append(args, clampLimit(filter.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.QueryExecutionLog, 0)
	for rows.Next() {
		log, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}
	return logs, nil
}

func (r *executionLogRepository) Stats(ctx context.Context) (*models.ExecutionStats, error) {
	stats := &models.ExecutionStats{ByStatus: make(map[models.ExecutionStatus]int64)}

	var avgTime float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE cache_hit),
		       COALESCE(AVG(execution_time_ms) FILTER (WHERE execution_status <> 'pending'), 0)::float8,
		       COALESCE(SUM(tokens_used), 0)
		FROM engine_query_execution_logs`).Scan(
		&stats.TotalExecutions,
		&stats.CacheHits,
		&avgTime,
		&stats.TotalTokensUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution stats: %w", err)
	}
	stats.AvgExecutionTimeMs = avgTime
	if stats.TotalExecutions > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalExecutions)
	}

	rows, err := r.db.Query(ctx, `
		SELECT execution_status, COUNT(*)
		FROM engine_query_execution_logs
		GROUP BY execution_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count execution logs by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.ExecutionStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan execution status count: %w", err)
		}
		stats.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution status counts: %w", err)
	}
	return stats, nil
}

func scanExecutionLog(row pgx.Row) (*models.QueryExecutionLog, error) {
	var log models.QueryExecutionLog
	var intentJSON []byte

	err := row.Scan(
		&log.ID,
		&log.UserID,
		&log.SessionID,
		&log.NaturalQuery,
		&intentJSON,
		&log.GeneratedSQL,
		&log.FinalSQL,
		&log.ExecutionStatus,
		&log.ExecutionTimeMs,
		&log.AIProcessingTimeMs,
		&log.TokensUsed,
		&log.CacheHit,
		&log.QueryComplexity,
		&log.ResultRowCount,
		&log.ErrorMessage,
		&log.ErrorType,
		&log.CreatedAt,
		&log.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(intentJSON) > 0 && string(intentJSON) != "null" {
		var intent map[string]any
		if jsonErr := json.Unmarshal(intentJSON, &intent); jsonErr == nil {
			log.IntentAnalysis = intent
		}
	}
	return &log, nil
}

// marshalJSONBany marshals any value to JSON bytes, returning nil for nil values.
func marshalJSONBany(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
