// Package tools provides the MCP tools exposed by ekaya-querycache.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

// QueryCacheToolDeps contains dependencies for the query cache tools.
type QueryCacheToolDeps struct {
	Pipeline services.QueryPipeline
	Logger   *zap.Logger
}

// RegisterQueryCacheTools adds the query, feedback, cache and dashboard tools.
func RegisterQueryCacheTools(s *server.MCPServer, deps *QueryCacheToolDeps) {
	registerQueryTool(s, deps)
	registerInvalidateCacheTool(s, deps)
	registerSubmitFeedbackTool(s, deps)
	registerReviewFeedbackTool(s, deps)
	registerListPendingFeedbackTool(s, deps)
	registerDashboardTool(s, deps)
}

// handleServiceError logs err at a level matching its cause and converts it
// into a tool result.
func handleServiceError(deps *QueryCacheToolDeps, tool string, err error) (*mcp.CallToolResult, error) {
	if IsInputError(err) {
		deps.Logger.Debug("Tool call rejected", zap.String("tool", tool), zap.Error(err))
	} else {
		deps.Logger.Error("Tool call failed", zap.String("tool", tool), zap.Error(err))
	}
	return ServiceErrorResult(err)
}
