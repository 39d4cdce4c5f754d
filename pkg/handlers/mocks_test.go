package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

// mockQueryPipeline is a hand-written QueryPipeline for handler tests.
type mockQueryPipeline struct {
	QueryFunc          func(ctx context.Context, req services.QueryRequest) (*services.QueryResponse, error)
	SubmitFeedbackFunc func(ctx context.Context, req services.SubmitFeedbackRequest) (*models.Feedback, error)
	ReviewFeedbackFunc func(ctx context.Context, id uuid.UUID, action models.ReviewAction, reviewerID, note string) (*models.Feedback, error)
	ListPendingFunc    func(ctx context.Context, limit int) ([]*models.Feedback, error)
	InvalidateFunc     func(ctx context.Context, queryHash string) error
	DashboardFunc      func(ctx context.Context) (*models.Dashboard, error)

	lastQuery  services.QueryRequest
	lastLimit  int
	lastReview struct {
		id         uuid.UUID
		action     models.ReviewAction
		reviewerID string
		note       string
	}
}

var _ services.QueryPipeline = (*mockQueryPipeline)(nil)

func (m *mockQueryPipeline) Query(ctx context.Context, req services.QueryRequest) (*services.QueryResponse, error) {
	m.lastQuery = req
	return m.QueryFunc(ctx, req)
}

func (m *mockQueryPipeline) SubmitFeedback(ctx context.Context, req services.SubmitFeedbackRequest) (*models.Feedback, error) {
	return m.SubmitFeedbackFunc(ctx, req)
}

func (m *mockQueryPipeline) ReviewFeedback(ctx context.Context, id uuid.UUID, action models.ReviewAction, reviewerID, note string) (*models.Feedback, error) {
	m.lastReview.id = id
	m.lastReview.action = action
	m.lastReview.reviewerID = reviewerID
	m.lastReview.note = note
	return m.ReviewFeedbackFunc(ctx, id, action, reviewerID, note)
}

func (m *mockQueryPipeline) ListPendingFeedback(ctx context.Context, limit int) ([]*models.Feedback, error) {
	m.lastLimit = limit
	return m.ListPendingFunc(ctx, limit)
}

func (m *mockQueryPipeline) InvalidateCache(ctx context.Context, queryHash string) error {
	return m.InvalidateFunc(ctx, queryHash)
}

func (m *mockQueryPipeline) GetDashboard(ctx context.Context) (*models.Dashboard, error) {
	return m.DashboardFunc(ctx)
}
