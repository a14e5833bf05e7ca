// Package invoke routes a single tool invocation: resolve the tool,
// validate arguments against its schema, execute the handler, and normalize
// the outcome into a Result envelope. Every failure mode is contained here;
// nothing escaping a handler can terminate the session.
package invoke

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FailureKind is the closed set of ways an invocation can fail.
type FailureKind string

const (
	// KindUnknownTool means the requested name is not registered.
	KindUnknownTool FailureKind = "unknown_tool"

	// KindValidationError means the arguments violated the input schema.
	KindValidationError FailureKind = "validation_error"

	// KindExecutionError means the handler itself failed or panicked.
	KindExecutionError FailureKind = "execution_error"

	// KindRequestTooLarge means the request exceeded the configured size cap
	// before reaching the dispatcher.
	KindRequestTooLarge FailureKind = "request_too_large"

	// KindAccessDenied means the path allow-list vetoed the operation.
	KindAccessDenied FailureKind = "access_denied"
)

// Failure describes one failed invocation. It implements error so tool
// handlers can return it directly to choose their own kind; the dispatcher
// unwraps it at the boundary instead of reclassifying.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Failf builds a Failure with a formatted message.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Result is the uniform envelope produced by the dispatcher: either a
// non-empty content payload or a Failure, never both.
type Result struct {
	Content []mcp.Content
	Failure *Failure
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

func success(content []mcp.Content) Result {
	return Result{Content: content}
}

func failure(f *Failure) Result {
	return Result{Failure: f}
}
