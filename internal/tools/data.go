package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/registry"
)

// maxProcessDataBytes caps the payload of one process_data call.
const maxProcessDataBytes = 10000

// RegisterData adds the process_data tool.
func RegisterData(reg *registry.Registry) error {
	return reg.Register(processDataSpec(), processDataHandler)
}

func processDataSpec() registry.Spec {
	return registry.Spec{
		Name:        "process_data",
		Description: "Process data with validation and error handling",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"data": {
					Type:        "string",
					Description: "Data to process",
				},
				"operation": {
					Type:        "string",
					Enum:        []any{"analyze", "transform", "validate"},
					Description: "Operation to perform",
				},
			},
			Required: []string{"data", "operation"},
		},
	}
}

func processDataHandler(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	data := stringArg(args, "data")
	operation := stringArg(args, "operation")

	if data == "" {
		return nil, fmt.Errorf("data parameter is required")
	}

	if len(data) > maxProcessDataBytes {
		return nil, fmt.Errorf("data size too large (max 10KB)")
	}

	var result map[string]any

	switch operation {
	case "analyze":
		result = map[string]any{
			"operation":          "analyze",
			"data_length":        len(data),
			"word_count":         len(strings.Fields(data)),
			"contains_numbers":   strings.ContainsFunc(data, unicode.IsDigit),
			"contains_uppercase": strings.ContainsFunc(data, unicode.IsUpper),
		}

	case "transform":
		result = map[string]any{
			"operation":     "transform",
			"original":      truncate(data, 100),
			"transformed":   truncate(strings.ToUpper(data), 100),
			"length_change": 0,
		}

	case "validate":
		trimmed := strings.TrimSpace(data)

		validationErrors := []string{}
		if trimmed == "" {
			validationErrors = append(validationErrors, "Empty or whitespace-only data")
		}

		result = map[string]any{
			"operation":         "validate",
			"is_valid":          trimmed != "",
			"validation_errors": validationErrors,
			"data_type":         "string",
			"encoding":          "utf-8",
		}

	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}

	return jsonText("Data Processing Result", result)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
