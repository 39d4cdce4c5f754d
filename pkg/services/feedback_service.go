package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/repositories"
)

// HelpfulRatingThreshold is the lowest rating counted as helpful when the
// submitter does not say.
const HelpfulRatingThreshold = 4

// SubmitFeedbackRequest is a user's judgement of one execution.
type SubmitFeedbackRequest struct {
	QueryLogID   uuid.UUID
	UserID       string
	Rating       int
	FeedbackType models.FeedbackType
	// IsHelpful overrides the value derived from type and rating.
	IsHelpful *bool

	Comments             *string
	CorrectedSQL         *string
	SuggestedImprovement *string
}

// FeedbackService collects feedback and moves it through moderation.
type FeedbackService interface {
	// Submit validates and stores pending feedback on an existing execution log.
	// Returns apperrors.ErrReferenceNotFound if the log does not exist.
	Submit(ctx context.Context, req SubmitFeedbackRequest) (*models.Feedback, error)

	MarkReviewed(ctx context.Context, id uuid.UUID, reviewerID string, adminResponse *string) (*models.Feedback, error)
	MarkResolved(ctx context.Context, id uuid.UUID, reviewerID string, adminResponse *string) (*models.Feedback, error)
	// MarkDismissed requires a non-blank reason, stored as the admin response.
	MarkDismissed(ctx context.Context, id uuid.UUID, reviewerID string, reason string) (*models.Feedback, error)

	// Get returns (nil, nil) when no feedback exists for id.
	Get(ctx context.Context, id uuid.UUID) (*models.Feedback, error)

	// ListPending returns the moderation queue, oldest first.
	ListPending(ctx context.Context, limit int) ([]*models.Feedback, error)
}

type feedbackService struct {
	repo    repositories.FeedbackRepository
	logRepo repositories.ExecutionLogRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewFeedbackService creates a FeedbackService. logRepo is used to check
// that feedback refers to a recorded execution.
func NewFeedbackService(
	repo repositories.FeedbackRepository,
	logRepo repositories.ExecutionLogRepository,
	logger *zap.Logger,
) FeedbackService {
	return &feedbackService{
		repo:    repo,
		logRepo: logRepo,
		logger:  logger.Named("feedback-service"),
		now:     time.Now,
	}
}

var _ FeedbackService = (*feedbackService)(nil)

func (s *feedbackService) Submit(ctx context.Context, req SubmitFeedbackRequest) (*models.Feedback, error) {
	if req.QueryLogID == uuid.Nil {
		return nil, apperrors.NewValidationError("query_log_id", "is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperrors.NewValidationError("user_id", "is required")
	}
	if err := models.ValidateRating(req.Rating); err != nil {
		return nil, err
	}
	if _, err := models.ParseFeedbackType(string(req.FeedbackType)); err != nil {
		return nil, err
	}

	exists, err := s.logRepo.Exists(ctx, req.QueryLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to check execution log: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("execution log %s: %w", req.QueryLogID, apperrors.ErrReferenceNotFound)
	}

	isHelpful := req.FeedbackType == models.FeedbackTypeHelpful || req.Rating >= HelpfulRatingThreshold
	if req.IsHelpful != nil {
		isHelpful = *req.IsHelpful
	}

	now := s.now()
	fb := &models.Feedback{
		ID:                   uuid.New(),
		QueryLogID:           req.QueryLogID,
		UserID:               req.UserID,
		Rating:               req.Rating,
		FeedbackType:         req.FeedbackType,
		IsHelpful:            isHelpful,
		Status:               models.FeedbackStatusPending,
		Comments:             req.Comments,
		CorrectedSQL:         req.CorrectedSQL,
		SuggestedImprovement: req.SuggestedImprovement,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}

	s.logger.Info("Feedback submitted",
		zap.String("feedback_id", fb.ID.String()),
		zap.String("query_log_id", fb.QueryLogID.String()),
		zap.String("feedback_type", string(fb.FeedbackType)),
		zap.String("rating_level", fb.RatingLevel()))
	return fb, nil
}

func (s *feedbackService) MarkReviewed(ctx context.Context, id uuid.UUID, reviewerID string, adminResponse *string) (*models.Feedback, error) {
	return s.transition(ctx, id, models.FeedbackStatusReviewed, reviewerID, adminResponse)
}

func (s *feedbackService) MarkResolved(ctx context.Context, id uuid.UUID, reviewerID string, adminResponse *string) (*models.Feedback, error) {
	return s.transition(ctx, id, models.FeedbackStatusResolved, reviewerID, adminResponse)
}

func (s *feedbackService) MarkDismissed(ctx context.Context, id uuid.UUID, reviewerID string, reason string) (*models.Feedback, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("reason", "is required to dismiss feedback")
	}
	return s.transition(ctx, id, models.FeedbackStatusDismissed, reviewerID, &reason)
}

func (s *feedbackService) transition(
	ctx context.Context,
	id uuid.UUID,
	status models.FeedbackStatus,
	reviewerID string,
	adminResponse *string,
) (*models.Feedback, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return nil, apperrors.NewValidationError("reviewer_id", "is required")
	}

	fb, err := s.repo.Transition(ctx, id, models.FeedbackTransition{
		Status:        status,
		ReviewerID:    reviewerID,
		AdminResponse: adminResponse,
		ReviewedAt:    s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark feedback %s: %w", status, err)
	}

	s.logger.Info("Feedback moderated",
		zap.String("feedback_id", id.String()),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID))
	return fb, nil
}

func (s *feedbackService) Get(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	fb, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

func (s *feedbackService) ListPending(ctx context.Context, limit int) ([]*models.Feedback, error) {
	feedback, err := s.repo.ListByStatus(ctx, models.FeedbackStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending feedback: %w", err)
	}
	return feedback, nil
}
