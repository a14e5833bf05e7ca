package tools

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/registry"
)

// RegisterBasics adds the demo tool set: echo, calculate, and
// get_system_info.
func RegisterBasics(reg *registry.Registry) error {
	if err := reg.Register(echoSpec(), echoHandler); err != nil {
		return err
	}

	if err := reg.Register(calculateSpec(), calculateHandler); err != nil {
		return err
	}

	return reg.Register(systemInfoSpec(), systemInfoHandler)
}

func echoSpec() registry.Spec {
	return registry.Spec{
		Name:        "echo",
		Description: "Echo back the input message",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message": {
					Type:        "string",
					Description: "Message to echo back",
				},
			},
			Required: []string{"message"},
		},
	}
}

func echoHandler(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	return text("Echo: " + stringArg(args, "message")), nil
}

func calculateSpec() registry.Spec {
	return registry.Spec{
		Name:        "calculate",
		Description: "Perform basic mathematical calculations",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"operation": {
					Type:        "string",
					Enum:        []any{"add", "subtract", "multiply", "divide"},
					Description: "Mathematical operation to perform",
				},
				"a": {
					Type:        "number",
					Description: "First number",
				},
				"b": {
					Type:        "number",
					Description: "Second number",
				},
			},
			Required: []string{"operation", "a", "b"},
		},
	}
}

func calculateHandler(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	operation := stringArg(args, "operation")
	a := numberArg(args, "a")
	b := numberArg(args, "b")

	var result float64

	switch operation {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}

		result = a / b
	default:
		// Unreachable while the schema enum holds; kept as a guard.
		return nil, fmt.Errorf("unknown operation %q", operation)
	}

	return text(fmt.Sprintf("Result: %s %s %s = %s",
		formatNumber(a), operation, formatNumber(b), formatNumber(result))), nil
}

func systemInfoSpec() registry.Spec {
	return registry.Spec{
		Name:        "get_system_info",
		Description: "Get basic system information",
		InputSchema: &jsonschema.Schema{
			Type:                 "object",
			Properties:           map[string]*jsonschema.Schema{},
			AdditionalProperties: registry.FalseSchema(),
		},
	}
}

func systemInfoHandler(_ context.Context, _ map[string]any) ([]mcp.Content, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := map[string]any{
		"os":                runtime.GOOS,
		"architecture":      runtime.GOARCH,
		"go_version":        runtime.Version(),
		"cpu_count":         runtime.NumCPU(),
		"process_id":        os.Getpid(),
		"hostname":          hostname,
		"current_directory": cwd,
	}

	return jsonText("System Information", info)
}
