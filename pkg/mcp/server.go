package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Instructions is advertised to clients during initialize.
const Instructions = "Answers natural-language questions against the configured datasource. " +
	"Repeated questions are served from the query cache. Use submit_feedback to rate answers " +
	"and invalidate_cache to drop a stale cached answer."

// Server wraps the mcp-go MCPServer that exposes the query cache tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates the MCP server. Tool capabilities, panic recovery and
// the instructions are always on; opts (for example server.WithHooks) are
// applied after them.
func NewServer(name, version string, logger *zap.Logger, opts ...server.ServerOption) *Server {
	base := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(Instructions),
	}
	return &Server{
		mcp:    server.NewMCPServer(name, version, append(base, opts...)...),
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// NewStreamableHTTPServer returns a stateless streamable HTTP transport.
// The caller's mux owns the /mcp route.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// Handler returns the transport mounted at path.
func (s *Server) Handler(path string) http.Handler {
	s.logger.Info("MCP transport ready", zap.String("path", path), zap.Bool("stateless", true))
	return s.NewStreamableHTTPServer()
}
