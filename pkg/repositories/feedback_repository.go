package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/database"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// FeedbackRepository provides storage for user feedback. Records are never deleted.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *models.Feedback) error
	// Get returns (nil, nil) when no feedback exists for id.
	Get(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	// Transition applies t only if the record is still pending and returns the
	// updated record. Returns apperrors.ErrNotFound or
	// apperrors.ErrInvalidTransition when nothing was written.
	Transition(ctx context.Context, id uuid.UUID, t models.FeedbackTransition) (*models.Feedback, error)
	// ListByStatus returns records in the given status, oldest first.
	ListByStatus(ctx context.Context, status models.FeedbackStatus, limit int) ([]*models.Feedback, error)
	Stats(ctx context.Context) (*models.FeedbackStats, error)
}

type feedbackRepository struct {
	db *database.DB
}

// NewFeedbackRepository creates a PostgreSQL-backed feedback repository.
func NewFeedbackRepository(db *database.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

var _ FeedbackRepository = (*feedbackRepository)(nil)

const feedbackColumns = `
	id, query_log_id, user_id, rating, feedback_type, is_helpful, status,
	comments, corrected_sql, suggested_improvement,
	admin_response, reviewed_at, reviewed_by,
	created_at, updated_at`

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

func (r *feedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_query_feedback (` + feedbackColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		fb.ID,
		fb.QueryLogID,
		fb.UserID,
		fb.Rating,
		fb.FeedbackType,
		fb.IsHelpful,
		fb.Status,
		fb.Comments,
		fb.CorrectedSQL,
		fb.SuggestedImprovement,
		fb.AdminResponse,
		fb.ReviewedAt,
		fb.ReviewedBy,
		fb.CreatedAt,
		fb.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("execution log %s: %w", fb.QueryLogID, apperrors.ErrReferenceNotFound)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

func (r *feedbackRepository) Get(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM engine_query_feedback WHERE id = $1`

	fb, err := scanFeedback(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

func (r *feedbackRepository) Transition(ctx context.Context, id uuid.UUID, t models.FeedbackTransition) (*models.Feedback, error) {
	query := `
		UPDATE engine_query_feedback
		SET status = $2,
		    reviewed_by = $3,
		    admin_response = COALESCE($4, admin_response),
		    reviewed_at = $5,
		    updated_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + feedbackColumns

	fb, err := scanFeedback(r.db.QueryRow(ctx, query, id, t.Status, t.ReviewerID, t.AdminResponse, t.ReviewedAt))
	if err == nil {
		return fb, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition feedback: %w", err)
	}

	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("feedback %s: %w", id, apperrors.ErrNotFound)
	}
	return nil, fmt.Errorf("feedback %s is %s: %w", id, existing.Status, apperrors.ErrInvalidTransition)
}

func (r *feedbackRepository) ListByStatus(ctx context.Context, status models.FeedbackStatus, limit int) ([]*models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + `
		FROM engine_query_feedback
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, status, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	feedback := make([]*models.Feedback, 0)
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedback = append(feedback, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}
	return feedback, nil
}

func (r *feedbackRepository) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	stats := newFeedbackStats()

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(rating), 0)::float8,
		       COUNT(*) FILTER (WHERE is_helpful),
		       COUNT(*) FILTER (WHERE NOT is_helpful)
		FROM engine_query_feedback`).Scan(
		&stats.TotalFeedbacks,
		&stats.AvgRating,
		&stats.PositiveCount,
		&stats.NegativeCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute feedback stats: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT feedback_type, status, COUNT(*)
		FROM engine_query_feedback
		GROUP BY feedback_type, status`)
	if err != nil {
		return nil, fmt.Errorf("failed to group feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ft models.FeedbackType
		var st models.FeedbackStatus
		var n int64
		if err := rows.Scan(&ft, &st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan feedback group: %w", err)
		}
		stats.ByType[ft] += n
		stats.ByStatus[st] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback groups: %w", err)
	}
	return stats, nil
}

func newFeedbackStats() *models.FeedbackStats {
	return &models.FeedbackStats{
		ByType:   make(map[models.FeedbackType]int64),
		ByStatus: make(map[models.FeedbackStatus]int64),
	}
}

func scanFeedback(row pgx.Row) (*models.Feedback, error) {
	var fb models.Feedback
	err := row.Scan(
		&fb.ID,
		&fb.QueryLogID,
		&fb.UserID,
		&fb.Rating,
		&fb.FeedbackType,
		&fb.IsHelpful,
		&fb.Status,
		&fb.Comments,
		&fb.CorrectedSQL,
		&fb.SuggestedImprovement,
		&fb.AdminResponse,
		&fb.ReviewedAt,
		&fb.ReviewedBy,
		&fb.CreatedAt,
		&fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}
