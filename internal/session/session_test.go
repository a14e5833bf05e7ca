package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/varanus-io/toolhost/internal/invoke"
	"github.com/varanus-io/toolhost/internal/metrics"
	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/transport"
)

type fixture struct {
	loop      *Loop
	transport *mockTransport
	registry  *registry.Registry
	metrics   *metrics.Collector
	shutdown  chan struct{}

	snapCh chan metrics.Snapshot
	errCh  chan error
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	reg := registry.New()
	col := metrics.NewCollector()
	mock := newMockTransport()
	shutdownCh := make(chan struct{})

	dispatcher := invoke.NewDispatcher(slog.Default(), reg, col)
	loop := NewLoop(slog.Default(), mock, reg, dispatcher, col, shutdownCh, cfg)

	return &fixture{
		loop:      loop,
		transport: mock,
		registry:  reg,
		metrics:   col,
		shutdown:  shutdownCh,
		snapCh:    make(chan metrics.Snapshot, 1),
		errCh:     make(chan error, 1),
	}
}

func (f *fixture) run(ctx context.Context) {
	go func() {
		snap, err := f.loop.Run(ctx)
		f.snapCh <- snap
		f.errCh <- err
	}()
}

func (f *fixture) stopAndWait(t *testing.T) (metrics.Snapshot, error) {
	t.Helper()

	select {
	case <-f.shutdown:
	default:
		close(f.shutdown)
	}

	return f.wait(t)
}

func (f *fixture) wait(t *testing.T) (metrics.Snapshot, error) {
	t.Helper()

	select {
	case snap := <-f.snapCh:
		return snap, <-f.errCh
	case <-time.After(10 * time.Second):
		t.Fatal("session did not stop")

		return metrics.Snapshot{}, nil
	}
}

func registerEcho(t *testing.T, reg *registry.Registry) {
	t.Helper()

	spec := registry.Spec{
		Name:        "echo",
		Description: "Echo back the input message",
		InputSchema: registry.SimpleSchema(map[string]string{"message": "string"}),
	}

	require.NoError(t, reg.Register(spec, func(_ context.Context, args map[string]any) ([]mcp.Content, error) {
		message, _ := args["message"].(string)

		return []mcp.Content{&mcp.TextContent{Text: "Echo: " + message}}, nil
	}))
}

func TestSessionListTools(t *testing.T) {
	f := newFixture(t, Config{})

	registerEcho(t, f.registry)
	require.NoError(t, f.registry.Register(registry.Spec{Name: "second", Description: "another"},
		func(_ context.Context, _ map[string]any) ([]mcp.Content, error) {
			return nil, nil
		}))

	f.run(context.Background())

	f.transport.incoming <- map[string]any{"kind": "list_tools", "request_id": "d1"}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "tools", resp["kind"])
	require.Equal(t, "d1", resp["request_id"])

	payload := resp["payload"].(map[string]any)
	tools := payload["tools"].([]any)
	require.Len(t, tools, 2)
	require.Equal(t, "echo", tools[0].(map[string]any)["name"])
	require.Equal(t, "second", tools[1].(map[string]any)["name"])

	// Discovery bypasses the dispatcher entirely.
	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Zero(t, snap.RequestsTotal)
}

func TestSessionCallToolRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	registerEcho(t, f.registry)
	f.run(context.Background())

	f.transport.incoming <- map[string]any{
		"kind":       "call_tool",
		"tool_name":  "echo",
		"arguments":  map[string]any{"message": "hi"},
		"request_id": "c1",
	}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "result", resp["kind"])
	require.Equal(t, "c1", resp["request_id"])

	payload := resp["payload"].(map[string]any)
	content := payload["content"].([]any)
	require.Equal(t, "Echo: hi", content[0].(map[string]any)["text"])

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.RequestsSucceeded)
	require.Equal(t, StateStopped, f.loop.State())
}

func TestSessionMintsRequestID(t *testing.T) {
	f := newFixture(t, Config{})
	registerEcho(t, f.registry)
	f.run(context.Background())

	f.transport.incoming <- map[string]any{
		"kind":      "call_tool",
		"tool_name": "echo",
		"arguments": map[string]any{"message": "hi"},
	}

	resp := f.transport.awaitResponse(t)
	id, _ := resp["request_id"].(string)
	require.Len(t, id, 26, "server-minted ids are ULIDs")

	_, err := f.stopAndWait(t)
	require.NoError(t, err)
}

func TestSessionUnknownTool(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(context.Background())

	f.transport.incoming <- map[string]any{
		"kind":       "call_tool",
		"tool_name":  "nope",
		"request_id": "u1",
	}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "error", resp["kind"])
	require.Equal(t, "u1", resp["request_id"])

	payload := resp["payload"].(map[string]any)
	require.Equal(t, "unknown_tool", payload["error_kind"])

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.RequestsFailed)
}

func TestSessionRequestTooLarge(t *testing.T) {
	f := newFixture(t, Config{MaxRequestBytes: 64})
	registerEcho(t, f.registry)
	f.run(context.Background())

	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}

	f.transport.incoming <- map[string]any{
		"kind":       "call_tool",
		"tool_name":  "echo",
		"arguments":  map[string]any{"message": string(big)},
		"request_id": "big1",
	}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "error", resp["kind"])

	payload := resp["payload"].(map[string]any)
	require.Equal(t, "request_too_large", payload["error_kind"])

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.RequestsFailed, "oversized requests count as failures")
}

func TestSessionMalformedRequest(t *testing.T) {
	f := newFixture(t, Config{})
	registerEcho(t, f.registry)
	f.run(context.Background())

	f.transport.incoming <- map[string]any{"kind": "subscribe", "request_id": "m1"}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "error", resp["kind"])
	require.Equal(t, "m1", resp["request_id"])
	require.Equal(t, "validation_error", resp["payload"].(map[string]any)["error_kind"])

	// The session keeps serving after a malformed request.
	f.transport.incoming <- map[string]any{
		"kind": "call_tool", "tool_name": "echo",
		"arguments": map[string]any{"message": "still here"}, "request_id": "m2",
	}

	resp = f.transport.awaitResponse(t)
	require.Equal(t, "result", resp["kind"])

	_, err := f.stopAndWait(t)
	require.NoError(t, err)
}

func TestSessionDecodeErrorIsRecoverable(t *testing.T) {
	f := newFixture(t, Config{})
	registerEcho(t, f.registry)
	f.run(context.Background())

	f.transport.readErrs <- &transport.DecodeError{RawData: "not json", Err: errors.New("invalid character 'n'")}

	f.transport.incoming <- map[string]any{
		"kind": "call_tool", "tool_name": "echo",
		"arguments": map[string]any{"message": "ok"}, "request_id": "d2",
	}

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "result", resp["kind"])

	_, err := f.stopAndWait(t)
	require.NoError(t, err)
}

func TestSessionFatalTransportError(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(context.Background())

	fault := errors.New("stream reset")
	f.transport.readErrs <- fault

	snap, err := f.wait(t)
	require.ErrorIs(t, err, fault)
	require.Equal(t, StateStopped, f.loop.State())
	require.Zero(t, snap.RequestsTotal)
}

func TestSessionTransportClosureDrains(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(context.Background())

	f.transport.endInput()

	_, err := f.wait(t)
	require.NoError(t, err)
	require.Equal(t, StateStopped, f.loop.State())
}

func TestSessionConcurrentInvocations(t *testing.T) {
	const (
		calls     = 5
		sleepTime = 200 * time.Millisecond
	)

	f := newFixture(t, Config{})

	require.NoError(t, f.registry.Register(registry.Spec{Name: "sleep"},
		func(ctx context.Context, _ map[string]any) ([]mcp.Content, error) {
			select {
			case <-time.After(sleepTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			return []mcp.Content{&mcp.TextContent{Text: "done"}}, nil
		}))

	f.run(context.Background())

	start := time.Now()

	ids := make(map[string]bool, calls)
	for i := range calls {
		id := string(rune('a' + i))
		ids[id] = true
		f.transport.incoming <- map[string]any{
			"kind": "call_tool", "tool_name": "sleep", "request_id": id,
		}
	}

	for range calls {
		resp := f.transport.awaitResponse(t)
		require.Equal(t, "result", resp["kind"])

		id, _ := resp["request_id"].(string)
		require.True(t, ids[id], "unexpected correlation id %q", id)

		delete(ids, id)
	}

	elapsed := time.Since(start)
	require.Empty(t, ids, "every call got exactly one correlated response")
	require.Less(t, elapsed, calls*sleepTime/2,
		"concurrent dispatch should take about one sleep, not %d of them", calls)

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Equal(t, uint64(calls), snap.RequestsSucceeded)
}

func TestSessionDrainWaitsForInFlight(t *testing.T) {
	f := newFixture(t, Config{GracePeriod: 3 * time.Second})

	release := make(chan struct{})
	require.NoError(t, f.registry.Register(registry.Spec{Name: "slow"},
		func(ctx context.Context, _ map[string]any) ([]mcp.Content, error) {
			select {
			case <-release:
				return []mcp.Content{&mcp.TextContent{Text: "finished"}}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))

	f.run(context.Background())

	f.transport.incoming <- map[string]any{
		"kind": "call_tool", "tool_name": "slow", "request_id": "s1",
	}

	// Wait until the call is actually in flight, then request shutdown.
	require.Eventually(t, func() bool { return f.loop.InFlight() == 1 },
		2*time.Second, 5*time.Millisecond)

	close(f.shutdown)

	// The session must stay in Draining until the in-flight call finishes.
	require.Eventually(t, func() bool { return f.loop.State() == StateDraining },
		2*time.Second, 5*time.Millisecond)

	close(release)

	resp := f.transport.awaitResponse(t)
	require.Equal(t, "result", resp["kind"])
	require.Equal(t, "s1", resp["request_id"])

	snap, err := f.wait(t)
	require.NoError(t, err)
	require.Equal(t, StateStopped, f.loop.State())
	require.Equal(t, uint64(1), snap.RequestsSucceeded)
}

func TestSessionGracePeriodAbandonsStragglers(t *testing.T) {
	f := newFixture(t, Config{GracePeriod: 100 * time.Millisecond})

	require.NoError(t, f.registry.Register(registry.Spec{Name: "stuck"},
		func(ctx context.Context, _ map[string]any) ([]mcp.Content, error) {
			// Only returns when abandoned.
			<-ctx.Done()

			return nil, ctx.Err()
		}))

	f.run(context.Background())

	f.transport.incoming <- map[string]any{
		"kind": "call_tool", "tool_name": "stuck", "request_id": "g1",
	}

	require.Eventually(t, func() bool { return f.loop.InFlight() == 1 },
		2*time.Second, 5*time.Millisecond)

	start := time.Now()

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second, "abandonment must not wait forever")

	// The abandoned call never succeeded and its response was discarded.
	require.Zero(t, snap.RequestsSucceeded)

	for _, msg := range f.transport.sentMessages() {
		require.NotEqual(t, "g1", msg["request_id"], "abandoned responses must be discarded")
	}

	// Give the abandoned goroutine a moment to unwind for the leak check.
	require.Eventually(t, func() bool { return f.loop.InFlight() == 0 },
		2*time.Second, 5*time.Millisecond)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "starting", StateStarting.String())
	require.Equal(t, "serving", StateServing.String())
	require.Equal(t, "draining", StateDraining.String())
	require.Equal(t, "stopped", StateStopped.String())
}

func TestSessionConcurrencyCap(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrentCalls: 1})

	var running, peak atomic.Int32

	require.NoError(t, f.registry.Register(registry.Spec{Name: "busy"},
		func(ctx context.Context, _ map[string]any) ([]mcp.Content, error) {
			now := running.Add(1)
			defer running.Add(-1)

			for {
				prev := peak.Load()
				if now <= prev || peak.CompareAndSwap(prev, now) {
					break
				}
			}

			select {
			case <-time.After(30 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			return []mcp.Content{&mcp.TextContent{Text: "ok"}}, nil
		}))

	f.run(context.Background())

	const calls = 4
	for i := range calls {
		f.transport.incoming <- map[string]any{
			"kind": "call_tool", "tool_name": "busy",
			"request_id": string(rune('a' + i)),
		}
	}

	for range calls {
		resp := f.transport.awaitResponse(t)
		require.Equal(t, "result", resp["kind"])
	}

	require.Equal(t, int32(1), peak.Load(), "cap of one means no overlap")

	snap, err := f.stopAndWait(t)
	require.NoError(t, err)
	require.Equal(t, uint64(calls), snap.RequestsSucceeded)
}
