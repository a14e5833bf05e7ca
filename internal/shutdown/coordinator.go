// Package shutdown converts operating-system termination signals into a
// one-shot event the session loop can select on.
package shutdown

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Coordinator owns the shutdown event. The first interrupt or terminate
// signal (or Trigger call) fires it; subsequent signals are no-ops rather
// than distinct shutdown requests.
type Coordinator struct {
	log *slog.Logger

	once sync.Once
	done chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	sigs     chan os.Signal
}

// NewCoordinator creates a Coordinator and begins listening for SIGINT and
// SIGTERM. Call Stop to release the signal registration.
func NewCoordinator(log *slog.Logger) *Coordinator {
	c := &Coordinator{
		log:    log.With("component", "shutdown"),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
		sigs:   make(chan os.Signal, 1),
	}

	signal.Notify(c.sigs, os.Interrupt, syscall.SIGTERM)

	go c.watch()

	return c
}

func (c *Coordinator) watch() {
	for {
		select {
		case sig := <-c.sigs:
			c.log.Info("Received termination signal", "signal", sig.String())
			c.Trigger()
		case <-c.stopCh:
			return
		}
	}
}

// Done returns the channel closed when shutdown has been requested.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Requested reports whether the shutdown event has fired.
func (c *Coordinator) Requested() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Trigger fires the shutdown event. Safe to call from any goroutine and
// idempotent: only the first call has an effect.
func (c *Coordinator) Trigger() {
	c.once.Do(func() {
		c.log.Debug("Shutdown event fired")
		close(c.done)
	})
}

// Stop releases the signal registration and stops the watch goroutine. It
// does not fire the shutdown event.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		signal.Stop(c.sigs)
		close(c.stopCh)
	})
}
