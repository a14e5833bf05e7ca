package toolhost

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/varanus-io/toolhost/internal/invoke"
	"github.com/varanus-io/toolhost/internal/metrics"
	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/security"
	"github.com/varanus-io/toolhost/internal/session"
	"github.com/varanus-io/toolhost/internal/shutdown"
	"github.com/varanus-io/toolhost/internal/tools"
	"github.com/varanus-io/toolhost/internal/transport"
)

// Config identifies the server and tunes one serving session.
type Config struct {
	// Name identifies the server in logs. Defaults to "toolhost".
	Name string

	// Version is reported by the health_check built-in tool.
	Version string

	// MaxRequestBytes caps the serialized argument size of one call.
	// Zero means 1MB.
	MaxRequestBytes int

	// GracePeriod bounds how long draining waits for in-flight calls.
	// Zero means 5s.
	GracePeriod time.Duration

	// MaxConcurrentCalls bounds how many invocations run at once.
	// Zero means 32.
	MaxConcurrentCalls int
}

// Transport moves framed messages between the server and its caller.
type Transport = transport.Transport

// Snapshot is a point-in-time copy of the server's request counters.
type Snapshot = metrics.Snapshot

// Server hosts a tool registry and serves discovery and invocation
// requests over a transport. Register tools first, then call Serve; the
// tool set is fixed for the lifetime of a serving session.
type Server struct {
	cfg  Config
	opts *serverOptions
	log  *slog.Logger

	registry *registry.Registry
	metrics  *metrics.Collector
}

// New creates a Server. The error is non-nil only when a requested
// built-in tool set cannot be registered.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "toolhost"
	}

	options := applyOptions(opts)

	s := &Server{
		cfg:      cfg,
		opts:     options,
		log:      options.logger.With("component", "server", "server_name", cfg.Name),
		registry: registry.New(),
		metrics:  metrics.NewCollector(),
	}

	if options.builtinGuarded != nil {
		if err := s.registerBuiltins(options.builtinGuarded); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Server) registerBuiltins(roots []string) error {
	if err := tools.RegisterBasics(s.registry); err != nil {
		return err
	}

	if err := tools.RegisterData(s.registry); err != nil {
		return err
	}

	if err := tools.RegisterOps(s.registry, s.metrics, s.cfg.Version); err != nil {
		return err
	}

	if len(roots) == 0 {
		return nil
	}

	guard, err := security.NewGuard(roots)
	if err != nil {
		return err
	}

	return tools.RegisterFilesystem(s.registry, guard)
}

// RegisterTool adds one tool. The spec's schema is resolved here, so a
// malformed schema fails registration rather than every later call.
// Registering a name twice returns *DuplicateToolError.
func (s *Server) RegisterTool(spec Spec, handler Handler) error {
	return s.registry.Register(spec, handler)
}

// Tools returns the registered tool specs in registration order.
func (s *Server) Tools() []Spec {
	return s.registry.Specs()
}

// Metrics returns a snapshot of the request counters.
func (s *Server) Metrics() Snapshot {
	return s.metrics.Snapshot()
}

// Serve runs one session over newline-delimited JSON on r and w. It blocks
// until the session drains, then returns the final metrics snapshot. The
// error is non-nil only for transport-level faults; tool failures are
// answered on the wire.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) (Snapshot, error) {
	return s.ServeTransport(ctx, transport.NewStreamTransport(s.opts.logger, r, w))
}

// ServeTransport runs one session over a caller-supplied transport.
func (s *Server) ServeTransport(ctx context.Context, tr Transport) (Snapshot, error) {
	var shutdownCh <-chan struct{}

	if s.opts.handleSignals {
		coord := shutdown.NewCoordinator(s.opts.logger)
		defer coord.Stop()

		shutdownCh = coord.Done()
	}

	s.log.Info("Server starting",
		"version", s.cfg.Version, "tools", s.registry.Len())

	dispatcher := invoke.NewDispatcher(s.opts.logger, s.registry, s.metrics)

	loop := session.NewLoop(s.opts.logger, tr, s.registry, dispatcher, s.metrics, shutdownCh,
		session.Config{
			MaxRequestBytes:    s.cfg.MaxRequestBytes,
			GracePeriod:        s.cfg.GracePeriod,
			MaxConcurrentCalls: s.cfg.MaxConcurrentCalls,
		})

	return loop.Run(ctx)
}
