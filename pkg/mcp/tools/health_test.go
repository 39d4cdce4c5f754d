package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHealthTool(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))

	RegisterHealthTool(mcpServer, "test-version", nil)

	result := mcpServer.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	require.Len(t, response.Result.Tools, 1)
	assert.Equal(t, "health", response.Result.Tools[0].Name)
	assert.Equal(t, "Returns server health status and version", response.Result.Tools[0].Description)
}

func TestHealthTool_ReturnsStatusAndVersion(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, `1.0.0-beta"test`, nil)

	response := callTool(t, mcpServer, "health", nil)
	assert.False(t, response.Result.IsError)

	var health healthResult
	require.NoError(t, json.Unmarshal([]byte(response.text(t)), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, `1.0.0-beta"test`, health.Version)
	assert.Empty(t, health.Checks)
}

func TestHealthTool_DegradedWhenCheckFails(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, "1.2.3", map[string]HealthCheck{
		"cache_store": func(context.Context) error { return nil },
		"datasource":  func(context.Context) error { return errors.New("connection refused") },
	})

	response := callTool(t, mcpServer, "health", nil)

	var health healthResult
	require.NoError(t, json.Unmarshal([]byte(response.text(t)), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "ok", health.Checks["cache_store"])
	assert.Equal(t, "error: connection refused", health.Checks["datasource"])
}
