package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
)

type invalidateResult struct {
	QueryHash   string `json:"query_hash"`
	Invalidated bool   `json:"invalidated"`
}

func registerQueryTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"query",
		mcp.WithDescription(
			"Answer a natural-language question about the data. "+
				"Identical questions with identical context are served from cache; "+
				"otherwise SQL is generated, checked and executed. "+
				"Returns the SQL, the result rows, and the log_id to use when submitting feedback.",
		),
		mcp.WithString(
			"natural_query",
			mcp.Required(),
			mcp.Description("The question to answer, in plain language"),
		),
		mcp.WithString(
			"user_id",
			mcp.Required(),
			mcp.Description("ID of the user asking the question"),
		),
		mcp.WithObject(
			"context",
			mcp.Description("Optional key/value context (for example term or department). Part of the cache key."),
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Optional session identifier recorded with the execution log"),
		),
		mcp.WithNumber(
			"ttl_seconds",
			mcp.Description("Optional lifetime in seconds for a newly cached answer"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		naturalQuery, err := req.RequireString("natural_query")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		request := services.QueryRequest{
			NaturalQuery: naturalQuery,
			Context:      models.NewQueryContext(getOptionalObject(req, "context")),
			UserID:       userID,
			SessionID:    getOptionalStringPtr(req, "session_id"),
		}
		if ttl, ok := getOptionalFloat(req, "ttl_seconds"); ok {
			if ttl < 0 {
				return NewErrorResult("invalid_parameters", "ttl_seconds must not be negative"), nil
			}
			request.TTL = time.Duration(ttl * float64(time.Second))
		}

		resp, err := deps.Pipeline.Query(ctx, request)
		if err != nil {
			return handleServiceError(deps, "query", err)
		}
		return marshalResult(resp)
	})
}

func registerInvalidateCacheTool(s *server.MCPServer, deps *QueryCacheToolDeps) {
	tool := mcp.NewTool(
		"invalidate_cache",
		mcp.WithDescription("Mark a cached answer as invalid so the next identical question is regenerated"),
		mcp.WithString(
			"query_hash",
			mcp.Required(),
			mcp.Description("The query_hash returned by the query tool"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hash, err := req.RequireString("query_hash")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		hash = trimString(hash)
		if err := deps.Pipeline.InvalidateCache(ctx, hash); err != nil {
			return handleServiceError(deps, "invalidate_cache", err)
		}
		return marshalResult(invalidateResult{QueryHash: hash, Invalidated: true})
	})
}
