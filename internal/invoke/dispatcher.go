package invoke

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/metrics"
	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/security"
)

// noContentText is the payload substituted when a handler returns nothing.
// An empty result is a success, not an error.
const noContentText = "no content returned"

// Dispatcher validates and executes tool invocations against a registry and
// reports every dispatched call to the metrics collector exactly once.
type Dispatcher struct {
	log      *slog.Logger
	registry *registry.Registry
	metrics  *metrics.Collector
}

// NewDispatcher creates a Dispatcher. The registry must be fully populated
// before the first Invoke.
func NewDispatcher(log *slog.Logger, reg *registry.Registry, col *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		log:      log.With("component", "dispatcher"),
		registry: reg,
		metrics:  col,
	}
}

// Invoke runs one tool call and returns its result envelope.
//
// Resolution misses, schema violations, and handler errors all come back as
// Failure values; the only side effect on any path is a single metrics
// record carrying the outcome, the elapsed time, and the tool name.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) Result {
	start := time.Now()

	result := d.invoke(ctx, name, args)

	elapsed := time.Since(start)
	d.metrics.Record(result.OK(), elapsed, name)

	if result.OK() {
		d.log.Debug("Tool executed", "tool", name, "elapsed", elapsed)
	} else {
		d.log.Warn("Tool invocation failed",
			"tool", name,
			"kind", result.Failure.Kind,
			"error", result.Failure.Message,
		)
	}

	return result
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) Result {
	entry, err := d.registry.Resolve(name)
	if err != nil {
		return failure(Failf(KindUnknownTool, "unknown tool: %s", name))
	}

	if args == nil {
		args = make(map[string]any)
	}

	if err := entry.ValidateArgs(args); err != nil {
		return failure(Failf(KindValidationError, "invalid arguments for %s: %v", name, err))
	}

	content, err := d.execute(ctx, entry, args)
	if err != nil {
		return failure(classify(err))
	}

	if len(content) == 0 {
		content = []mcp.Content{&mcp.TextContent{Text: noContentText}}
	}

	return success(content)
}

// execute runs the handler with panic containment. A panicking tool is a
// failed invocation, not a dead session.
func (d *Dispatcher) execute(
	ctx context.Context,
	entry *registry.Entry,
	args map[string]any,
) (content []mcp.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Tool handler panicked", "tool", entry.Spec.Name, "panic", r)

			content = nil
			err = Failf(KindExecutionError, "tool %s panicked: %v", entry.Spec.Name, r)
		}
	}()

	return entry.Handler(ctx, args)
}

// classify maps a handler error to its Failure. Handlers may return a
// *Failure or a security denial to pick the kind; anything else is an
// execution error.
func classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var denied *security.DeniedError
	if errors.As(err, &denied) {
		return &Failure{Kind: KindAccessDenied, Message: denied.Error()}
	}

	return &Failure{Kind: KindExecutionError, Message: err.Error()}
}
