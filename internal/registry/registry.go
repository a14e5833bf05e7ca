// Package registry stores the set of named tools a server exposes.
//
// A tool is a Spec (name, description, JSON Schema input contract) bound to
// a Handler. The registry is populated at server construction and read-only
// for the lifetime of a session; discovery always reflects registration
// order.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler executes one tool invocation. It receives arguments already
// validated against the tool's input schema and returns the result payload
// as content items. A returned error is contained at the dispatch boundary
// and never terminates the session.
type Handler func(ctx context.Context, args map[string]any) ([]mcp.Content, error)

// Spec describes one callable tool.
type Spec struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Description is shown to callers during discovery.
	Description string

	// InputSchema declares the tool's argument contract. A nil schema
	// accepts any object.
	InputSchema *jsonschema.Schema
}

// DuplicateToolError indicates a second registration under an existing name.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// UnknownToolError indicates a lookup for a name that was never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Entry is a registered tool: its spec, its handler, and the resolved form
// of its schema used for argument validation.
type Entry struct {
	Spec     Spec
	Handler  Handler
	resolved *jsonschema.Resolved
}

// ValidateArgs checks args against the tool's resolved input schema and
// fills in declared defaults for absent fields. The map is mutated in place
// when defaults apply.
func (e *Entry) ValidateArgs(args map[string]any) error {
	if e.resolved == nil {
		return nil
	}

	if err := e.resolved.ApplyDefaults(&args); err != nil {
		return err
	}

	return e.resolved.Validate(args)
}

// Registry owns the name -> tool mapping. The mutex only guards the
// populate phase; once a session starts serving, the registry is treated as
// immutable.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry, 16),
	}
}

// Register adds a tool. The schema is resolved once here so per-invocation
// validation does no schema compilation. Registration fails with
// *DuplicateToolError when the name is taken, or with a schema error when
// the input schema cannot be resolved.
func (r *Registry) Register(spec Spec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", spec.Name)
	}

	var resolved *jsonschema.Resolved

	if spec.InputSchema != nil {
		var err error

		resolved, err = spec.InputSchema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tool %s: resolve input schema: %w", spec.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}

	r.entries[spec.Name] = &Entry{
		Spec:     spec,
		Handler:  handler,
		resolved: resolved,
	}
	r.order = append(r.order, spec.Name)

	return nil
}

// Resolve returns the entry for name, or *UnknownToolError.
func (r *Registry) Resolve(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists {
		return nil, &UnknownToolError{Name: name}
	}

	return entry, nil
}

// Specs returns the registered tool specs in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.entries[name].Spec)
	}

	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
