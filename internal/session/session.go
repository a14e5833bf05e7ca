// Package session runs the protocol state machine for one connected
// session: it accepts discovery and invocation requests from the transport,
// serializes invocations through the dispatcher on their own goroutines,
// and writes correlated responses back.
//
// The loop moves through Starting -> Serving -> Draining -> Stopped. A
// shutdown event or transport closure forces Draining, where in-flight
// invocations get a bounded grace period before being abandoned.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/varanus-io/toolhost/internal/invoke"
	"github.com/varanus-io/toolhost/internal/metrics"
	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/transport"
	"github.com/varanus-io/toolhost/internal/wire"
)

// State is the lifecycle position of a session loop.
type State int32

const (
	// StateStarting means the registry is populated but the transport is
	// not yet accepting requests.
	StateStarting State = iota

	// StateServing means the loop is reading and dispatching requests.
	StateServing

	// StateDraining means no new requests are accepted but in-flight
	// invocations may still complete.
	StateDraining

	// StateStopped means the loop has exited and emitted its final
	// metrics snapshot.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxRequestBytes caps the serialized argument size of one call.
	DefaultMaxRequestBytes = 1024 * 1024 // 1MB

	// DefaultGracePeriod bounds how long draining waits for in-flight
	// invocations before abandoning them.
	DefaultGracePeriod = 5 * time.Second

	// DefaultMaxConcurrentCalls bounds how many invocations run at once.
	// Calls past the limit queue on the dispatch semaphore.
	DefaultMaxConcurrentCalls = 32
)

// Config tunes one session loop.
type Config struct {
	MaxRequestBytes    int
	GracePeriod        time.Duration
	MaxConcurrentCalls int
}

func (c Config) withDefaults() Config {
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = DefaultMaxRequestBytes
	}

	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}

	if c.MaxConcurrentCalls <= 0 {
		c.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}

	return c
}

// inflightCall tracks one dispatched invocation until its response is
// written or the call is abandoned during draining.
type inflightCall struct {
	requestID string
	toolName  string
	cancel    context.CancelFunc
	abandoned atomic.Bool
}

// Loop is the session state machine. Create one per connection with
// NewLoop and drive it with Run.
type Loop struct {
	log        *slog.Logger
	transport  transport.Transport
	registry   *registry.Registry
	dispatcher *invoke.Dispatcher
	metrics    *metrics.Collector
	shutdown   <-chan struct{}
	cfg        Config
	sem        *semaphore.Weighted

	state atomic.Int32

	wg      sync.WaitGroup
	callsMu sync.Mutex
	calls   map[string]*inflightCall
}

// NewLoop creates a session loop in the Starting state. The shutdown
// channel is the one-shot event from the shutdown coordinator; closing it
// forces the Draining transition.
func NewLoop(
	log *slog.Logger,
	tr transport.Transport,
	reg *registry.Registry,
	dispatcher *invoke.Dispatcher,
	col *metrics.Collector,
	shutdownCh <-chan struct{},
	cfg Config,
) *Loop {
	cfg = cfg.withDefaults()

	return &Loop{
		log:        log.With("component", "session"),
		transport:  tr,
		registry:   reg,
		dispatcher: dispatcher,
		metrics:    col,
		shutdown:   shutdownCh,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls)),
		calls:      make(map[string]*inflightCall, 8),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.log.Debug("Session state changed", "state", s.String())
}

// InFlight returns the number of invocations currently being dispatched.
func (l *Loop) InFlight() int {
	l.callsMu.Lock()
	defer l.callsMu.Unlock()

	return len(l.calls)
}

// Run serves the session until shutdown or transport closure, then drains
// and returns the final metrics snapshot. The returned error is non-nil
// only for transport-level faults; per-invocation failures are answered on
// the wire and never surface here.
func (l *Loop) Run(ctx context.Context) (metrics.Snapshot, error) {
	if err := l.transport.Start(ctx); err != nil {
		l.setState(StateStopped)

		return l.metrics.Snapshot(), err
	}

	l.setState(StateServing)
	l.log.Info("Session serving", "tools", l.registry.Len())

	// Discovery responses reflect the registry fixed at session start.
	specs := l.registry.Specs()

	// Reading stops at drain; dispatched work keeps its own context so
	// in-flight calls survive into the grace period.
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	dispatchCtx, abandonAll := context.WithCancel(context.Background())
	defer abandonAll()

	messages, errs := l.transport.ReadMessages(readCtx)

	var fatalErr error

serving:
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				l.log.Info("Transport closed, draining")

				break serving
			}

			l.handleMessage(dispatchCtx, specs, msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			var decodeErr *transport.DecodeError
			if errors.As(err, &decodeErr) {
				l.log.Warn("Skipping malformed request frame", "error", err)

				continue
			}

			l.log.Error("Transport fault, draining", "error", err)

			fatalErr = err

			break serving

		case <-l.shutdown:
			l.log.Info("Shutdown requested, draining")

			break serving

		case <-ctx.Done():
			fatalErr = ctx.Err()

			break serving
		}
	}

	return l.drain(stopReading, abandonAll), fatalErr
}

// handleMessage routes one inbound message. Discovery is answered inline;
// invocations are dispatched on their own goroutine so a slow tool does not
// stall the accept loop.
func (l *Loop) handleMessage(dispatchCtx context.Context, specs []registry.Spec, msg map[string]any) {
	req, err := wire.ParseRequest(msg)
	if err != nil {
		requestID, _ := msg["request_id"].(string)
		l.send(dispatchCtx, wire.ErrorResponse(requestID,
			invoke.Failf(invoke.KindValidationError, "%v", err)))

		return
	}

	switch req.Kind {
	case wire.KindListTools:
		l.log.Debug("Listing tools", "count", len(specs))
		l.send(dispatchCtx, wire.ToolsResponse(req.RequestID, specs))

	case wire.KindCallTool:
		l.dispatch(dispatchCtx, req)
	}
}

// dispatch runs one invocation asynchronously, guarding request size first.
func (l *Loop) dispatch(dispatchCtx context.Context, req *wire.Request) {
	start := time.Now()

	// Every response needs a correlation token; mint one when the caller
	// did not supply a request id.
	requestID := req.RequestID
	if requestID == "" {
		requestID = ulid.Make().String()
	}

	if size := argumentsSize(req.Arguments); size > l.cfg.MaxRequestBytes {
		l.log.Warn("Rejecting oversized request",
			"tool", req.ToolName, "size", size, "max", l.cfg.MaxRequestBytes)
		l.metrics.Record(false, time.Since(start), req.ToolName)
		l.send(dispatchCtx, wire.ErrorResponse(requestID,
			invoke.Failf(invoke.KindRequestTooLarge,
				"request size %d exceeds maximum %d bytes", size, l.cfg.MaxRequestBytes)))

		return
	}

	opCtx, cancel := context.WithCancel(dispatchCtx)

	call := &inflightCall{
		requestID: requestID,
		toolName:  req.ToolName,
		cancel:    cancel,
	}

	l.callsMu.Lock()
	l.calls[requestID] = call
	l.callsMu.Unlock()

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer cancel()
		defer func() {
			l.callsMu.Lock()
			delete(l.calls, requestID)
			l.callsMu.Unlock()
		}()

		if err := l.sem.Acquire(opCtx, 1); err != nil {
			// Cancelled while queued for a dispatch slot.
			l.log.Warn("Abandoned before dispatch", "tool", req.ToolName, "request_id", requestID)

			return
		}
		defer l.sem.Release(1)

		result := l.dispatcher.Invoke(opCtx, req.ToolName, req.Arguments)

		if call.abandoned.Load() {
			// The grace period expired while this call ran; the session is
			// past caring and the response is discarded.
			l.log.Warn("Discarding response of abandoned call",
				"tool", req.ToolName, "request_id", requestID)

			return
		}

		if result.OK() {
			l.send(dispatchCtx, wire.ResultResponse(requestID, result.Content))
		} else {
			l.send(dispatchCtx, wire.ErrorResponse(requestID, result.Failure))
		}
	}()
}

// drain stops accepting requests, waits out the grace period for in-flight
// work, abandons stragglers, and emits the final snapshot.
func (l *Loop) drain(stopReading, abandonAll context.CancelFunc) metrics.Snapshot {
	l.setState(StateDraining)
	l.log.Info("Session draining", "in_flight", l.InFlight(), "grace_period", l.cfg.GracePeriod)

	stopReading()

	done := make(chan struct{})

	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(l.cfg.GracePeriod):
		abandoned := l.abandonInFlight()
		l.log.Warn("Grace period expired", "abandoned", abandoned)
		abandonAll()
	}

	l.setState(StateStopped)

	if err := l.transport.Close(); err != nil {
		l.log.Debug("Transport close failed", "error", err)
	}

	snap := l.metrics.Snapshot()
	l.log.Info("Session stopped",
		"requests_total", snap.RequestsTotal,
		"requests_succeeded", snap.RequestsSucceeded,
		"requests_failed", snap.RequestsFailed,
		"average_latency", snap.AverageLatency,
		"uptime", snap.Uptime,
	)

	return snap
}

// abandonInFlight marks every outstanding call abandoned and cancels its
// context. Returns how many calls were abandoned.
func (l *Loop) abandonInFlight() int {
	l.callsMu.Lock()
	defer l.callsMu.Unlock()

	for _, call := range l.calls {
		call.abandoned.Store(true)
		call.cancel()
	}

	return len(l.calls)
}

// send marshals and writes one outbound message. Write failures are logged;
// there is nothing else to do with them mid-session.
func (l *Loop) send(ctx context.Context, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.log.Error("Failed to marshal response", "error", err)

		return
	}

	if err := l.transport.SendMessage(ctx, data); err != nil {
		l.log.Error("Failed to send response", "error", err)
	}
}

// argumentsSize measures the serialized size of a call's arguments for the
// pre-dispatch request size guard.
func argumentsSize(args map[string]any) int {
	if len(args) == 0 {
		return 0
	}

	data, err := json.Marshal(args)
	if err != nil {
		return 0
	}

	return len(data)
}
