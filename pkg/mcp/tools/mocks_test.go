package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

type mockPipeline struct {
	queryFunc       func(ctx context.Context, req services.QueryRequest) (*services.QueryResponse, error)
	submitFunc      func(ctx context.Context, req services.SubmitFeedbackRequest) (*models.Feedback, error)
	reviewFunc      func(ctx context.Context, id uuid.UUID, action models.ReviewAction, reviewerID, note string) (*models.Feedback, error)
	listPendingFunc func(ctx context.Context, limit int) ([]*models.Feedback, error)
	invalidateFunc  func(ctx context.Context, queryHash string) error
	dashboardFunc   func(ctx context.Context) (*models.Dashboard, error)

	lastQuery  services.QueryRequest
	lastSubmit services.SubmitFeedbackRequest
	lastLimit  int
}

var _ services.QueryPipeline = (*mockPipeline)(nil)

func (m *mockPipeline) Query(ctx context.Context, req services.QueryRequest) (*services.QueryResponse, error) {
	m.lastQuery = req
	if m.queryFunc != nil {
		return m.queryFunc(ctx, req)
	}
	return &services.QueryResponse{}, nil
}

func (m *mockPipeline) SubmitFeedback(ctx context.Context, req services.SubmitFeedbackRequest) (*models.Feedback, error) {
	m.lastSubmit = req
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return &models.Feedback{ID: uuid.New(), Status: models.FeedbackStatusPending}, nil
}

func (m *mockPipeline) ReviewFeedback(ctx context.Context, id uuid.UUID, action models.ReviewAction, reviewerID, note string) (*models.Feedback, error) {
	if m.reviewFunc != nil {
		return m.reviewFunc(ctx, id, action, reviewerID, note)
	}
	return &models.Feedback{ID: id}, nil
}

func (m *mockPipeline) ListPendingFeedback(ctx context.Context, limit int) ([]*models.Feedback, error) {
	m.lastLimit = limit
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockPipeline) InvalidateCache(ctx context.Context, queryHash string) error {
	if m.invalidateFunc != nil {
		return m.invalidateFunc(ctx, queryHash)
	}
	return nil
}

func (m *mockPipeline) GetDashboard(ctx context.Context) (*models.Dashboard, error) {
	if m.dashboardFunc != nil {
		return m.dashboardFunc(ctx)
	}
	return &models.Dashboard{}, nil
}

func newToolServer(pipeline services.QueryPipeline) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterQueryCacheTools(s, &QueryCacheToolDeps{Pipeline: pipeline, Logger: zap.NewNop()})
	return s
}

// toolCallResponse is the decoded JSON-RPC response of a tools/call.
type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolCallResponse) text(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.Result.Content, "expected content in response")
	return r.Result.Content[0].Text
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolCallResponse {
	t.Helper()

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), request)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response toolCallResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response), fmt.Sprintf("response: %s", resultBytes))
	return response
}

func decodeErrorResponse(t *testing.T, r toolCallResponse) ErrorResponse {
	t.Helper()
	require.True(t, r.Result.IsError, "expected an error result")
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(r.text(t)), &errResp))
	return errResp
}
