package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

// QueryRequest is the POST /api/query body.
type QueryRequest struct {
	NaturalQuery string         `json:"natural_query"`
	Context      map[string]any `json:"context,omitempty"`
	UserID       string         `json:"user_id"`
	SessionID    *string        `json:"session_id,omitempty"`
	TTLSeconds   int            `json:"ttl_seconds,omitempty"`
}

// InvalidateResponse is returned by POST /api/cache/{hash}/invalidate.
type InvalidateResponse struct {
	QueryHash   string `json:"query_hash"`
	Invalidated bool   `json:"invalidated"`
}

// QueryHandler serves natural-language queries, cache administration and
// the dashboard.
type QueryHandler struct {
	pipeline services.QueryPipeline
	logger   *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(pipeline services.QueryPipeline, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("GET /api/dashboard", h.Dashboard)
	mux.HandleFunc("POST /api/cache/{hash}/invalidate", h.Invalidate)
}

// Query handles POST /api/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.TTLSeconds < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "ttl_seconds must not be negative"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.pipeline.Query(r.Context(), services.QueryRequest{
		NaturalQuery: req.NaturalQuery,
		Context:      models.NewQueryContext(req.Context),
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		TTL:          time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.logger.Info("Query failed",
			zap.String("natural_query", logging.SanitizeQuery(req.NaturalQuery)),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Dashboard handles GET /api/dashboard
func (h *QueryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.pipeline.GetDashboard(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: dashboard}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Invalidate handles POST /api/cache/{hash}/invalidate
func (h *QueryHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := h.pipeline.InvalidateCache(r.Context(), hash); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	response := ApiResponse{Success: true, Data: InvalidateResponse{QueryHash: hash, Invalidated: true}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
