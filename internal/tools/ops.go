package tools

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/metrics"
	"github.com/varanus-io/toolhost/internal/registry"
)

// RegisterOps adds the operational tools. health_check and get_metrics are
// ordinary tools reached through the same call path as everything else;
// there is no separate administrative protocol.
func RegisterOps(reg *registry.Registry, col *metrics.Collector, version string) error {
	if err := reg.Register(healthCheckSpec(), healthCheckHandler(col, version)); err != nil {
		return err
	}

	return reg.Register(getMetricsSpec(), getMetricsHandler(col))
}

func healthCheckSpec() registry.Spec {
	return registry.Spec{
		Name:        "health_check",
		Description: "Check server health and status",
		InputSchema: &jsonschema.Schema{
			Type:                 "object",
			Properties:           map[string]*jsonschema.Schema{},
			AdditionalProperties: registry.FalseSchema(),
		},
	}
}

func healthCheckHandler(col *metrics.Collector, version string) registry.Handler {
	return func(_ context.Context, _ map[string]any) ([]mcp.Content, error) {
		snap := col.Snapshot()

		status := map[string]any{
			"status":             "healthy",
			"timestamp":          time.Now().Format(time.RFC3339),
			"version":            version,
			"uptime_seconds":     snap.Uptime.Seconds(),
			"requests_processed": snap.RequestsTotal,
			"success_rate":       snap.SuccessRate(),
		}

		return jsonText("Health Check", status)
	}
}

func getMetricsSpec() registry.Spec {
	return registry.Spec{
		Name:        "get_metrics",
		Description: "Get server performance metrics",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"detailed": {
					Type:        "boolean",
					Description: "Include detailed metrics",
					Default:     []byte("false"),
				},
			},
		},
	}
}

func getMetricsHandler(col *metrics.Collector) registry.Handler {
	return func(_ context.Context, args map[string]any) ([]mcp.Content, error) {
		snap := col.Snapshot()

		if !boolArg(args, "detailed") {
			summary := map[string]any{
				"requests_total":           snap.RequestsTotal,
				"success_rate":             snap.SuccessRate(),
				"average_response_time_ms": float64(snap.AverageLatency) / float64(time.Millisecond),
				"uptime_seconds":           snap.Uptime.Seconds(),
			}

			return jsonText("Server Metrics", summary)
		}

		detailed := map[string]any{
			"requests_total":           snap.RequestsTotal,
			"requests_successful":      snap.RequestsSucceeded,
			"requests_failed":          snap.RequestsFailed,
			"success_rate":             snap.SuccessRate(),
			"tools_executed":           snap.PerTool,
			"average_response_time_ms": float64(snap.AverageLatency) / float64(time.Millisecond),
			"start_time":               snap.StartTime.Format(time.RFC3339),
			"uptime_seconds":           snap.Uptime.Seconds(),
		}

		return jsonText("Server Metrics", detailed)
	}
}
