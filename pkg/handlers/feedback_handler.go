package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

// SubmitFeedbackRequest is the POST /api/feedback body.
type SubmitFeedbackRequest struct {
	QueryLogID           string  `json:"query_log_id"`
	UserID               string  `json:"user_id"`
	Rating               int     `json:"rating"`
	FeedbackType         string  `json:"feedback_type"`
	IsHelpful            *bool   `json:"is_helpful,omitempty"`
	Comments             *string `json:"comments,omitempty"`
	CorrectedSQL         *string `json:"corrected_sql,omitempty"`
	SuggestedImprovement *string `json:"suggested_improvement,omitempty"`
}

// ReviewFeedbackRequest is the POST /api/feedback/{id}/review body.
type ReviewFeedbackRequest struct {
	Action     string `json:"action"`
	ReviewerID string `json:"reviewer_id"`
	Note       string `json:"note,omitempty"`
}

// FeedbackResponse adds display labels to a feedback record.
type FeedbackResponse struct {
	*models.Feedback
	TypeLabel   string `json:"type_label"`
	StatusLabel string `json:"status_label"`
	RatingLevel string `json:"rating_level"`
}

// ListFeedbackResponse wraps a feedback listing.
type ListFeedbackResponse struct {
	Feedback []FeedbackResponse `json:"feedback"`
}

// FeedbackHandler handles feedback submission and moderation.
type FeedbackHandler struct {
	pipeline services.QueryPipeline
	logger   *zap.Logger
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(pipeline services.QueryPipeline, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers the feedback handler's routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/feedback", h.Submit)
	mux.HandleFunc("GET /api/feedback/pending", h.ListPending)
	mux.HandleFunc("POST /api/feedback/{id}/review", h.Review)
}

// Submit handles POST /api/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	logID, err := uuid.Parse(req.QueryLogID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query_log_id", "Invalid query log ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	fb, err := h.pipeline.SubmitFeedback(r.Context(), services.SubmitFeedbackRequest{
		QueryLogID:           logID,
		UserID:               req.UserID,
		Rating:               req.Rating,
		FeedbackType:         models.FeedbackType(req.FeedbackType),
		IsHelpful:            req.IsHelpful,
		Comments:             req.Comments,
		CorrectedSQL:         req.CorrectedSQL,
		SuggestedImprovement: req.SuggestedImprovement,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: toFeedbackResponse(fb)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Review handles POST /api/feedback/{id}/review
func (h *FeedbackHandler) Review(w http.ResponseWriter, r *http.Request) {
	feedbackID, ok := ParseFeedbackID(w, r, h.logger)
	if !ok {
		return
	}

	var req ReviewFeedbackRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	action, err := models.ParseReviewAction(req.Action)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	fb, err := h.pipeline.ReviewFeedback(r.Context(), feedbackID, action, req.ReviewerID, req.Note)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: toFeedbackResponse(fb)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListPending handles GET /api/feedback/pending
func (h *FeedbackHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, h.logger)
	if !ok {
		return
	}

	feedback, err := h.pipeline.ListPendingFeedback(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	data := ListFeedbackResponse{Feedback: make([]FeedbackResponse, 0, len(feedback))}
	for _, fb := range feedback {
		data.Feedback = append(data.Feedback, toFeedbackResponse(fb))
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toFeedbackResponse(fb *models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		Feedback:    fb,
		TypeLabel:   fb.FeedbackType.Label(),
		StatusLabel: fb.Status.Label(),
		RatingLevel: fb.RatingLevel(),
	}
}
