package toolhost

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/varanus-io/toolhost/internal/registry"
)

// Spec describes one registered tool: its wire name, a human-readable
// description, and the JSON schema its arguments must satisfy. A nil
// InputSchema accepts any argument object.
type Spec = registry.Spec

// Handler executes one validated invocation. Arguments have passed schema
// validation and had schema defaults applied. Returning an error produces a
// failure response; a panic is contained the same way.
type Handler = registry.Handler

// Schema is the JSON schema type used for tool input declarations.
type Schema = jsonschema.Schema

// SimpleSchema builds an object schema from property names to primitive
// type names ("string", "number", "integer", "boolean"). Every property is
// required.
func SimpleSchema(properties map[string]string) *Schema {
	return registry.SimpleSchema(properties)
}

// FalseSchema returns a schema that rejects everything. Useful as
// AdditionalProperties on tools that accept no arguments.
func FalseSchema() *Schema {
	return registry.FalseSchema()
}
