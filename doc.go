// Package toolhost runs a schema-validated tool-invocation server over a
// message transport.
//
// A host owns a registry of named tools. Callers discover the tools and
// invoke them by name with JSON-object arguments; every invocation is
// validated against the tool's input schema before its handler runs, and
// every outcome, success or failure, comes back as a correlated response
// on the same transport. Handler failures never take the session down.
//
// # Basic Usage
//
//	srv, err := toolhost.New(toolhost.Config{Name: "demo", Version: "1.0.0"},
//	    toolhost.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = srv.RegisterTool(toolhost.Spec{
//	    Name:        "greet",
//	    Description: "Greet someone by name",
//	    InputSchema: toolhost.SimpleSchema(map[string]string{"name": "string"}),
//	}, func(ctx context.Context, args map[string]any) ([]toolhost.Content, error) {
//	    name, _ := args["name"].(string)
//
//	    return toolhost.TextResult("Hello, " + name + "!"), nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	snapshot, err := srv.Serve(context.Background(), os.Stdin, os.Stdout)
//
// Serve reads newline-delimited JSON requests, dispatches invocations
// concurrently, and returns the final metrics snapshot once the session has
// drained. An interrupt signal, transport closure, or context cancellation
// all trigger the same cooperative drain: in-flight calls get a grace
// period to finish before they are abandoned.
//
// # Built-in Tools
//
// WithBuiltinTools registers the bundled tool sets: echo, calculate,
// system info, data processing, health and metrics reporting, and an
// allow-listed filesystem suite restricted to the given roots. The
// toolhost command serves exactly this set.
package toolhost
