package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// mockTransport feeds the loop from test-owned channels and captures every
// outbound message for assertions.
type mockTransport struct {
	incoming chan map[string]any
	readErrs chan error

	mu     sync.Mutex
	sent   []map[string]any
	sentCh chan map[string]any
	closed bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		incoming: make(chan map[string]any, 16),
		readErrs: make(chan error, 16),
		sentCh:   make(chan map[string]any, 64),
	}
}

func (m *mockTransport) Start(_ context.Context) error {
	return nil
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return m.incoming, m.readErrs
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.sentCh <- msg

	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.incoming)
		close(m.readErrs)
	}

	return nil
}

// endInput simulates the remote side closing the stream.
func (m *mockTransport) endInput() {
	m.Close()
}

func (m *mockTransport) sentMessages() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]map[string]any, len(m.sent))
	copy(out, m.sent)

	return out
}

func (m *mockTransport) awaitResponse(t *testing.T) map[string]any {
	t.Helper()

	select {
	case msg := <-m.sentCh:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a response")

		return nil
	}
}
