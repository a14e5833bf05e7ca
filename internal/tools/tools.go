// Package tools provides the built-in tool set: basic demo tools, data
// processing, operational health/metrics tools, and an allow-listed
// filesystem suite. Every tool registers through the same registry and
// speaks the same content-item vocabulary as external tools.
package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// text wraps a string as a single-item content payload.
func text(s string) []mcp.Content {
	return []mcp.Content{&mcp.TextContent{Text: s}}
}

// jsonText renders v as indented JSON under a heading line.
func jsonText(heading string, v any) ([]mcp.Content, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", heading, err)
	}

	return text(fmt.Sprintf("%s:\n%s", heading, data)), nil
}

// stringArg reads a string argument. Validation has already run, so a
// missing optional value comes back as the zero string.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)

	return s
}

// boolArg reads a bool argument.
func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)

	return b
}

// numberArg reads a numeric argument. JSON numbers decode as float64.
func numberArg(args map[string]any, key string) float64 {
	f, _ := args[key].(float64)

	return f
}

// formatNumber renders a float without trailing zeros, so 42.0 prints as 42.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
