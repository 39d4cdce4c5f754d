package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return val
}

// getOptionalStringPtr returns nil when the argument is absent or blank.
func getOptionalStringPtr(req mcp.CallToolRequest, key string) *string {
	val := trimString(getOptionalString(req, key))
	if val == "" {
		return nil
	}
	return &val
}

// getOptionalFloat extracts an optional float argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	val, ok := arguments(req)[key].(float64)
	return val, ok
}

func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	val, ok := arguments(req)[key].(bool)
	return val, ok
}

// getOptionalObject extracts an optional object argument. Absent or
// non-object values yield nil.
func getOptionalObject(req mcp.CallToolRequest, key string) map[string]any {
	val, _ := arguments(req)[key].(map[string]any)
	return val
}
