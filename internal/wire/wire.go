// Package wire defines the message contract between the session loop and
// its transport: inbound discovery/invocation requests and outbound tools,
// result, and error envelopes. The framing underneath is the transport's
// business; this package only deals in decoded JSON objects.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/invoke"
	"github.com/varanus-io/toolhost/internal/registry"
)

// Inbound request kinds.
const (
	KindListTools = "list_tools"
	KindCallTool  = "call_tool"
)

// Outbound message kinds.
const (
	KindTools  = "tools"
	KindResult = "result"
	KindError  = "error"
)

// Request is one decoded inbound message.
//
// Wire format:
//
//	{"kind": "list_tools"}
//	{"kind": "call_tool", "tool_name": "echo", "arguments": {...}, "request_id": "abc"}
type Request struct {
	Kind      string
	ToolName  string
	Arguments map[string]any
	RequestID string
}

// ParseError indicates an inbound message that does not fit the contract.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed request: %s", e.Reason)
}

// ParseRequest decodes an inbound message map into a Request.
func ParseRequest(msg map[string]any) (*Request, error) {
	kind, _ := msg["kind"].(string)

	switch kind {
	case KindListTools:
		req := &Request{Kind: kind}
		req.RequestID, _ = msg["request_id"].(string)

		return req, nil

	case KindCallTool:
		req := &Request{Kind: kind}
		req.RequestID, _ = msg["request_id"].(string)

		name, ok := msg["tool_name"].(string)
		if !ok || name == "" {
			return nil, &ParseError{Reason: "call_tool requires tool_name"}
		}

		req.ToolName = name

		if raw, present := msg["arguments"]; present {
			args, ok := raw.(map[string]any)
			if !ok {
				return nil, &ParseError{Reason: "arguments must be an object"}
			}

			req.Arguments = args
		}

		return req, nil

	case "":
		return nil, &ParseError{Reason: "missing kind"}

	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported kind %q", kind)}
	}
}

// ToolsResponse builds the discovery response carrying every spec in
// registration order.
func ToolsResponse(requestID string, specs []registry.Spec) map[string]any {
	tools := make([]map[string]any, 0, len(specs))

	for _, spec := range specs {
		tool := map[string]any{
			"name":        spec.Name,
			"description": spec.Description,
		}

		if schemaMap, ok := schemaToMap(spec.InputSchema); ok {
			tool["input_schema"] = schemaMap
		}

		tools = append(tools, tool)
	}

	resp := map[string]any{
		"kind":    KindTools,
		"payload": map[string]any{"tools": tools},
	}

	if requestID != "" {
		resp["request_id"] = requestID
	}

	return resp
}

// ResultResponse builds a success envelope for one invocation.
func ResultResponse(requestID string, content []mcp.Content) map[string]any {
	return map[string]any{
		"kind":       KindResult,
		"request_id": requestID,
		"payload":    map[string]any{"content": ContentToMaps(content)},
	}
}

// ErrorResponse builds a failure envelope for one invocation.
func ErrorResponse(requestID string, f *invoke.Failure) map[string]any {
	return map[string]any{
		"kind":       KindError,
		"request_id": requestID,
		"payload": map[string]any{
			"error_kind": string(f.Kind),
			"message":    f.Message,
		},
	}
}

// ContentToMaps converts content items to their wire representation.
func ContentToMaps(content []mcp.Content) []map[string]any {
	out := make([]map[string]any, 0, len(content))

	for _, c := range content {
		switch v := c.(type) {
		case *mcp.TextContent:
			out = append(out, map[string]any{
				"type": "text",
				"text": v.Text,
			})
		case *mcp.ImageContent:
			out = append(out, map[string]any{
				"type":     "image",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *mcp.AudioContent:
			out = append(out, map[string]any{
				"type":     "audio",
				"data":     v.Data,
				"mimeType": v.MIMEType,
			})
		case *mcp.ResourceLink:
			out = append(out, map[string]any{
				"type": "resource_link",
				"uri":  v.URI,
				"name": v.Name,
			})
		case *mcp.EmbeddedResource:
			if v.Resource != nil {
				out = append(out, map[string]any{
					"type": "resource",
					"resource": map[string]any{
						"uri":      v.Resource.URI,
						"mimeType": v.Resource.MIMEType,
						"text":     v.Resource.Text,
					},
				})
			}
		}
	}

	return out
}

// schemaToMap serializes a schema document through JSON so discovery
// responses carry plain maps rather than SDK types.
func schemaToMap(schema *jsonschema.Schema) (map[string]any, bool) {
	if schema == nil {
		return nil, false
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}

	return out, true
}
