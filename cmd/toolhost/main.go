// Command toolhost serves the bundled tool set over newline-delimited JSON
// on stdin/stdout. Logs go to stderr; the protocol owns stdout.
//
// Configuration comes from toolhost.yaml and TOOLHOST_* environment
// variables. SIGINT or SIGTERM starts a cooperative drain: in-flight calls
// get the configured grace period before the process exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/varanus-io/toolhost"
)

// version is reported by the health_check tool.
const version = "1.0.0"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "toolhost:", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	srv, err := toolhost.New(toolhost.Config{
		Name:               cfg.Name,
		Version:            version,
		MaxRequestBytes:    cfg.MaxRequestBytes,
		GracePeriod:        cfg.GracePeriod,
		MaxConcurrentCalls: cfg.MaxConcurrentCalls,
	},
		toolhost.WithLogger(log),
		toolhost.WithBuiltinTools(cfg.AllowedRoots...),
	)
	if err != nil {
		log.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	snap, err := srv.Serve(context.Background(), os.Stdin, os.Stdout)
	if err != nil {
		log.Error("Server exited with transport fault", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited",
		"requests_total", snap.RequestsTotal,
		"success_rate", snap.SuccessRate(),
		"uptime", snap.Uptime,
	)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level

	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
