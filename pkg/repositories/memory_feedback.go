package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

type memoryFeedbackRepository struct {
	mu       sync.RWMutex
	feedback map[uuid.UUID]*models.Feedback
}

// NewMemoryFeedbackRepository creates an in-process feedback repository.
func NewMemoryFeedbackRepository() FeedbackRepository {
	return &memoryFeedbackRepository{feedback: make(map[uuid.UUID]*models.Feedback)}
}

var _ FeedbackRepository = (*memoryFeedbackRepository)(nil)

func copyFeedback(fb *models.Feedback) *models.Feedback {
	c := *fb
	return &c
}

func (r *memoryFeedbackRepository) Create(_ context.Context, fb *models.Feedback) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feedback[fb.ID]; ok {
		return fmt.Errorf("feedback %s: %w", fb.ID, apperrors.ErrConflict)
	}
	r.feedback[fb.ID] = copyFeedback(fb)
	return nil
}

func (r *memoryFeedbackRepository) Get(_ context.Context, id uuid.UUID) (*models.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fb, ok := r.feedback[id]
	if !ok {
		return nil, nil
	}
	return copyFeedback(fb), nil
}

func (r *memoryFeedbackRepository) Transition(_ context.Context, id uuid.UUID, t models.FeedbackTransition) (*models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fb, ok := r.feedback[id]
	if !ok {
		return nil, fmt.Errorf("feedback %s: %w", id, apperrors.ErrNotFound)
	}
	if fb.Status != models.FeedbackStatusPending {
		return nil, fmt.Errorf("feedback %s is %s: %w", id, fb.Status, apperrors.ErrInvalidTransition)
	}

	updated := copyFeedback(fb)
	reviewer := t.ReviewerID
	reviewedAt := t.ReviewedAt
	updated.Status = t.Status
	updated.ReviewedBy = &reviewer
	updated.ReviewedAt = &reviewedAt
	updated.UpdatedAt = reviewedAt
	if t.AdminResponse != nil {
		updated.AdminResponse = t.AdminResponse
	}
	r.feedback[id] = updated
	return copyFeedback(updated), nil
}

func (r *memoryFeedbackRepository) ListByStatus(_ context.Context, status models.FeedbackStatus, limit int) ([]*models.Feedback, error) {
	r.mu.RLock()
	out := make([]*models.Feedback, 0)
	for _, fb := range r.feedback {
		if fb.Status == status {
			out = append(out, copyFeedback(fb))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryFeedbackRepository) Stats(_ context.Context) (*models.FeedbackStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := newFeedbackStats()
	var ratingSum int64
	for _, fb := range r.feedback {
		stats.TotalFeedbacks++
		ratingSum += int64(fb.Rating)
		if fb.IsHelpful {
			stats.PositiveCount++
		} else {
			stats.NegativeCount++
		}
		stats.ByType[fb.FeedbackType]++
		stats.ByStatus[fb.Status]++
	}
	if stats.TotalFeedbacks > 0 {
		stats.AvgRating = float64(ratingSum) / float64(stats.TotalFeedbacks)
	}
	return stats, nil
}
