package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerDashboardTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"get_dashboard",
		mcp.WithDescription(
			"Returns cache, feedback and execution statistics together with the most frequently hit cached queries",
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dashboard, err := deps.Pipeline.GetDashboard(ctx)
		if err != nil {
			return handleServiceError(deps, "get_dashboard", err)
		}
		return marshalResult(dashboard)
	})
}
