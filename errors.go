package toolhost

import (
	"github.com/varanus-io/toolhost/internal/invoke"
	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/security"
	"github.com/varanus-io/toolhost/internal/transport"
)

// Re-export the invocation failure taxonomy.

// FailureKind is the closed set of ways an invocation can fail.
type FailureKind = invoke.FailureKind

const (
	// KindUnknownTool means the requested name is not registered.
	KindUnknownTool = invoke.KindUnknownTool

	// KindValidationError means the arguments violated the input schema.
	KindValidationError = invoke.KindValidationError

	// KindExecutionError means the handler itself failed or panicked.
	KindExecutionError = invoke.KindExecutionError

	// KindRequestTooLarge means the request exceeded the size cap.
	KindRequestTooLarge = invoke.KindRequestTooLarge

	// KindAccessDenied means the path allow-list vetoed the operation.
	KindAccessDenied = invoke.KindAccessDenied
)

// Failure describes one failed invocation. Handlers can return a *Failure
// to choose their own kind; it is preserved through dispatch instead of
// being reclassified as an execution error.
type Failure = invoke.Failure

// Failf builds a Failure with a formatted message.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return invoke.Failf(kind, format, args...)
}

// DuplicateToolError indicates a second registration under an existing name.
type DuplicateToolError = registry.DuplicateToolError

// UnknownToolError indicates a lookup for a name that was never registered.
type UnknownToolError = registry.UnknownToolError

// AccessDeniedError indicates the path allow-list vetoed a filesystem path.
type AccessDeniedError = security.DeniedError

// DecodeError indicates one inbound frame could not be decoded. The session
// skips the frame and keeps serving.
type DecodeError = transport.DecodeError

// ErrTransportClosed indicates a send on a closed transport.
var ErrTransportClosed = transport.ErrTransportClosed
