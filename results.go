package toolhost

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Content is one item in an invocation's result payload.
type Content = mcp.Content

// TextContent carries plain text.
type TextContent = mcp.TextContent

// ImageContent carries base64 image data with a MIME type.
type ImageContent = mcp.ImageContent

// AudioContent carries base64 audio data with a MIME type.
type AudioContent = mcp.AudioContent

// ResourceLink references a resource by URI without embedding it.
type ResourceLink = mcp.ResourceLink

// EmbeddedResource carries resource contents inline.
type EmbeddedResource = mcp.EmbeddedResource

// TextResult wraps a string as a single-item text result.
func TextResult(text string) []Content {
	return []Content{&TextContent{Text: text}}
}

// Textf formats a single-item text result.
func Textf(format string, args ...any) []Content {
	return TextResult(fmt.Sprintf(format, args...))
}

// JSONResult renders v as indented JSON in a single text item. The error is
// non-nil only when v cannot be marshaled.
func JSONResult(v any) ([]Content, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	return TextResult(string(data)), nil
}
