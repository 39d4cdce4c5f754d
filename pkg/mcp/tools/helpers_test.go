package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestTrimString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"leading whitespace", "  test", "test"},
		{"trailing whitespace", "test  ", "test"},
		{"mixed whitespace", " \t\ntest\n\t ", "test"},
		{"no whitespace", "test", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimString(tt.input))
		})
	}
}

func requestWithArgs(args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestOptionalArguments(t *testing.T) {
	req := requestWithArgs(map[string]any{
		"name":    "fall term",
		"blank":   "   ",
		"limit":   float64(5),
		"helpful": true,
		"context": map[string]any{"term": "fall"},
		"wrong":   42,
	})

	assert.Equal(t, "fall term", getOptionalString(req, "name"))
	assert.Equal(t, "", getOptionalString(req, "wrong"))
	assert.Equal(t, "", getOptionalString(req, "missing"))

	if assert.NotNil(t, getOptionalStringPtr(req, "name")) {
		assert.Equal(t, "fall term", *getOptionalStringPtr(req, "name"))
	}
	assert.Nil(t, getOptionalStringPtr(req, "blank"))

	limit, ok := getOptionalFloat(req, "limit")
	assert.True(t, ok)
	assert.Equal(t, float64(5), limit)
	_, ok = getOptionalFloat(req, "name")
	assert.False(t, ok)

	helpful, ok := getOptionalBool(req, "helpful")
	assert.True(t, ok)
	assert.True(t, helpful)

	assert.Equal(t, map[string]any{"term": "fall"}, getOptionalObject(req, "context"))
	assert.Nil(t, getOptionalObject(req, "name"))
}

func TestOptionalArguments_NoArguments(t *testing.T) {
	req := requestWithArgs(nil)

	assert.Equal(t, "", getOptionalString(req, "name"))
	_, ok := getOptionalFloat(req, "limit")
	assert.False(t, ok)
	assert.Nil(t, getOptionalObject(req, "context"))
}
