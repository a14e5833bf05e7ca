package toolhost

import "log/slog"

// Option configures a Server using the functional options pattern.
type Option func(*serverOptions)

type serverOptions struct {
	logger         *slog.Logger
	handleSignals  bool
	builtinGuarded []string
}

func applyOptions(opts []Option) *serverOptions {
	options := &serverOptions{handleSignals: true}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = NopLogger()
	}

	return options
}

// WithLogger sets the logger for server output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithoutSignalHandling disables the server's own interrupt and terminate
// handlers. Use this when the host process owns signal handling and drives
// shutdown through context cancellation instead.
func WithoutSignalHandling() Option {
	return func(o *serverOptions) {
		o.handleSignals = false
	}
}

// WithBuiltinTools registers the built-in tool sets (echo, calculate,
// system info, data processing, health and metrics reporting) plus the
// filesystem suite restricted to allowedRoots. With no roots the filesystem
// suite is skipped.
func WithBuiltinTools(allowedRoots ...string) Option {
	return func(o *serverOptions) {
		if allowedRoots == nil {
			allowedRoots = []string{}
		}

		o.builtinGuarded = allowedRoots
	}
}
