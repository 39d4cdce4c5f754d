package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/generation"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid input"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "bad_request", body["error"])
	assert.Equal(t, "invalid input", body["message"])
}

func TestWriteJSON_Status200(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusOK, map[string]string{"key": "value"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"key":"value"}`, w.Body.String())
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"validation", fmt.Errorf("wrapped: %w", apperrors.NewValidationError("rating", "must be between 1 and 5, got 9")),
			http.StatusBadRequest, "validation_error", "invalid rating: must be between 1 and 5, got 9"},
		{"not found", fmt.Errorf("feedback x: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found", ""},
		{"reference not found", fmt.Errorf("log x: %w", apperrors.ErrReferenceNotFound), http.StatusNotFound, "reference_not_found", ""},
		{"invalid transition", fmt.Errorf("feedback x is resolved: %w", apperrors.ErrInvalidTransition), http.StatusConflict, "invalid_transition", ""},
		{"generation", generation.NewGenerationError(models.ErrorTypeSQL, "generated SQL failed to execute", errors.New("pq: secret detail")),
			http.StatusBadGateway, "sql_error", "generated SQL failed to execute"},
		{"cancelled", fmt.Errorf("query cancelled: %w", context.Canceled), http.StatusGatewayTimeout, "cancelled", ""},
		{"internal", errors.New("password=hunter2 connection refused"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["error"])
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
			}
		})
	}
}
