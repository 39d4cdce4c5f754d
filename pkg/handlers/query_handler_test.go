package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/generation"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

func newQueryMux(pipeline *mockQueryPipeline) *http.ServeMux {
	mux := http.NewServeMux()
	NewQueryHandler(pipeline, zap.NewNop()).RegisterRoutes(mux)
	NewFeedbackHandler(pipeline, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestQueryHandler_Query_Success(t *testing.T) {
	logID := uuid.New()
	pipeline := &mockQueryPipeline{
		QueryFunc: func(context.Context, services.QueryRequest) (*services.QueryResponse, error) {
			return &services.QueryResponse{
				LogID:          logID,
				QueryHash:      "abc",
				SQL:            "SELECT count(*) FROM students",
				ResultData:     []map[string]any{{"count": 42}},
				ResultMetadata: models.ResultMetadata{RowCount: 1},
				FromCache:      true,
			}, nil
		},
	}

	rec := serve(newQueryMux(pipeline), http.MethodPost, "/api/query",
		`{"natural_query":"How many students?","context":{"term":"fall"},"user_id":"u1","ttl_seconds":60}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "How many students?", pipeline.lastQuery.NaturalQuery)
	assert.Equal(t, "u1", pipeline.lastQuery.UserID)
	assert.Equal(t, time.Minute, pipeline.lastQuery.TTL)
	term, ok := pipeline.lastQuery.Context.Get("term")
	require.True(t, ok)
	assert.Equal(t, "fall", term)

	var body struct {
		Success bool                   `json:"success"`
		Data    services.QueryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, logID, body.Data.LogID)
	assert.True(t, body.Data.FromCache)
	assert.Equal(t, "abc", body.Data.QueryHash)
}

func TestQueryHandler_Query_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{"natural_query":`, nil, http.StatusBadRequest, "invalid_request"},
		{"unknown field", `{"natural_query":"q","user_id":"u","bogus":1}`, nil, http.StatusBadRequest, "invalid_request"},
		{"negative ttl", `{"natural_query":"q","user_id":"u","ttl_seconds":-1}`, nil, http.StatusBadRequest, "validation_error"},
		{"validation", `{"natural_query":"","user_id":"u"}`, apperrors.NewValidationError("natural_query", "is required"), http.StatusBadRequest, "validation_error"},
		{"generation", `{"natural_query":"q","user_id":"u"}`, generation.NewGenerationError(models.ErrorTypeAI, "model unavailable", nil), http.StatusBadGateway, "ai_error"},
		{"permission", `{"natural_query":"q","user_id":"u"}`, generation.NewGenerationError(models.ErrorTypePermission, "only read-only queries are allowed", nil), http.StatusBadGateway, "permission_error"},
		{"cancelled", `{"natural_query":"q","user_id":"u"}`, fmt.Errorf("query cancelled: %w", context.Canceled), http.StatusGatewayTimeout, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &mockQueryPipeline{
				QueryFunc: func(context.Context, services.QueryRequest) (*services.QueryResponse, error) {
					return nil, tt.err
				},
			}
			rec := serve(newQueryMux(pipeline), http.MethodPost, "/api/query", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestQueryHandler_Dashboard(t *testing.T) {
	pipeline := &mockQueryPipeline{
		DashboardFunc: func(context.Context) (*models.Dashboard, error) {
			return &models.Dashboard{
				CacheStats:     &models.CacheStats{TotalCaches: 3, ValidCaches: 2},
				FeedbackStats:  &models.FeedbackStats{ByType: map[models.FeedbackType]int64{}, ByStatus: map[models.FeedbackStatus]int64{}},
				ExecutionStats: &models.ExecutionStats{TotalExecutions: 10, ByStatus: map[models.ExecutionStatus]int64{}},
				PopularCaches:  []*models.CacheEntry{},
			}, nil
		},
	}

	rec := serve(newQueryMux(pipeline), http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.Dashboard `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(3), body.Data.CacheStats.TotalCaches)
	assert.Equal(t, int64(10), body.Data.ExecutionStats.TotalExecutions)
}

func TestQueryHandler_Invalidate(t *testing.T) {
	var invalidated string
	pipeline := &mockQueryPipeline{
		InvalidateFunc: func(_ context.Context, hash string) error {
			invalidated = hash
			return nil
		},
	}

	rec := serve(newQueryMux(pipeline), http.MethodPost, "/api/cache/0123abcd/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123abcd", invalidated)

	rec = serve(newQueryMux(pipeline), http.MethodGet, "/api/cache/0123abcd/invalidate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
