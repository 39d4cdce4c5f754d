package tools

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

const defaultPendingLimit = 20

type feedbackResult struct {
	*models.Feedback
	TypeLabel   string `json:"type_label"`
	StatusLabel string `json:"status_label"`
	RatingLevel string `json:"rating_level"`
}

type pendingFeedbackResult struct {
	Feedback []feedbackResult `json:"feedback"`
	Count    int              `json:"count"`
}

func toFeedbackResult(fb *models.Feedback) feedbackResult {
	return feedbackResult{
		Feedback:    fb,
		TypeLabel:   fb.FeedbackType.Label(),
		StatusLabel: fb.Status.Label(),
		RatingLevel: fb.RatingLevel(),
	}
}

func registerSubmitFeedbackTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"submit_feedback",
		mcp.WithDescription(
			"Rate the answer to a previous query. Use the log_id returned by the query tool. "+
				"Feedback starts pending until a moderator reviews it.",
		),
		mcp.WithString(
			"query_log_id",
			mcp.Required(),
			mcp.Description("The log_id of the query being rated"),
		),
		mcp.WithString(
			"user_id",
			mcp.Required(),
			mcp.Description("ID of the user giving feedback"),
		),
		mcp.WithNumber(
			"rating",
			mcp.Required(),
			mcp.Description("Rating from 1 (poor) to 5 (excellent)"),
		),
		mcp.WithString(
			"feedback_type",
			mcp.Required(),
			mcp.Description("One of: helpful, incorrect, slow, confusing, suggestion"),
		),
		mcp.WithBoolean(
			"is_helpful",
			mcp.Description("Whether the answer helped. Derived from type and rating when omitted."),
		),
		mcp.WithString("comments", mcp.Description("Optional free-form comments")),
		mcp.WithString("corrected_sql", mcp.Description("Optional corrected SQL for an incorrect answer")),
		mcp.WithString("suggested_improvement", mcp.Description("Optional suggestion for a better answer")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawLogID, err := req.RequireString("query_log_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		logID, err := uuid.Parse(trimString(rawLogID))
		if err != nil {
			return NewErrorResult("invalid_parameters", "query_log_id must be a UUID"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		rating, ok := getOptionalFloat(req, "rating")
		if !ok {
			return NewErrorResult("invalid_parameters", "required argument \"rating\" not found"), nil
		}
		if rating != math.Trunc(rating) {
			return NewErrorResult("invalid_parameters", "rating must be a whole number"), nil
		}
		feedbackType, err := req.RequireString("feedback_type")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		submit := services.SubmitFeedbackRequest{
			QueryLogID:           logID,
			UserID:               userID,
			Rating:               int(rating),
			FeedbackType:         models.FeedbackType(trimString(feedbackType)),
			Comments:             getOptionalStringPtr(req, "comments"),
			CorrectedSQL:         getOptionalStringPtr(req, "corrected_sql"),
			SuggestedImprovement: getOptionalStringPtr(req, "suggested_improvement"),
		}
		if helpful, ok := getOptionalBool(req, "is_helpful"); ok {
			submit.IsHelpful = &helpful
		}

		fb, err := deps.Pipeline.SubmitFeedback(ctx, submit)
		if err != nil {
			return handleServiceError(deps, "submit_feedback", err)
		}
		return marshalResult(toFeedbackResult(fb))
	})
}

func registerReviewFeedbackTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"review_feedback",
		mcp.WithDescription(
			"Moderate a pending feedback record. Actions: review, resolve, dismiss. "+
				"Dismissals require a note. Moderated feedback cannot be moderated again.",
		),
		mcp.WithString("feedback_id", mcp.Required(), mcp.Description("ID of the feedback record")),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: review, resolve, dismiss")),
		mcp.WithString("reviewer_id", mcp.Required(), mcp.Description("ID of the moderator")),
		mcp.WithString("note", mcp.Description("Admin response; required when dismissing")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawID, err := req.RequireString("feedback_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		feedbackID, err := uuid.Parse(trimString(rawID))
		if err != nil {
			return NewErrorResult("invalid_parameters", "feedback_id must be a UUID"), nil
		}
		rawAction, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		action, err := models.ParseReviewAction(trimString(rawAction))
		if err != nil {
			return ServiceErrorResult(err)
		}
		reviewerID, err := req.RequireString("reviewer_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		fb, err := deps.Pipeline.ReviewFeedback(ctx, feedbackID, action, reviewerID, getOptionalString(req, "note"))
		if err != nil {
			return handleServiceError(deps, "review_feedback", err)
		}
		return marshalResult(toFeedbackResult(fb))
	})
}

func registerListPendingFeedbackTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"list_pending_feedback",
		mcp.WithDescription("List feedback awaiting moderation, oldest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 20)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := defaultPendingLimit
		if l, ok := getOptionalFloat(req, "limit"); ok {
			if l < 1 {
				return NewErrorResult("invalid_parameters", "limit must be at least 1"), nil
			}
			limit = int(l)
		}

		feedback, err := deps.Pipeline.ListPendingFeedback(ctx, limit)
		if err != nil {
			return handleServiceError(deps, "list_pending_feedback", err)
		}

		result := pendingFeedbackResult{Feedback: make([]feedbackResult, 0, len(feedback))}
		for _, fb := range feedback {
			result.Feedback = append(result.Feedback, toFeedbackResult(fb))
		}
		result.Count = len(result.Feedback)
		return marshalResult(result)
	})
}
