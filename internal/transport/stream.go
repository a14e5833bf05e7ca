package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// maxScanTokenSize caps the size of a single inbound frame.
const maxScanTokenSize = 1024 * 1024 // 1MB

// StreamTransport frames newline-delimited JSON over an io.Reader and an
// io.Writer, typically stdin/stdout.
type StreamTransport struct {
	log *slog.Logger
	r   io.Reader
	w   io.Writer

	mu     sync.Mutex // protects writes and the closed flag
	closed bool
}

// Compile-time verification that StreamTransport implements Transport.
var _ Transport = (*StreamTransport)(nil)

// NewStreamTransport creates a transport over the given stream pair.
func NewStreamTransport(log *slog.Logger, r io.Reader, w io.Writer) *StreamTransport {
	return &StreamTransport{
		log: log.With("component", "stream_transport"),
		r:   r,
		w:   w,
	}
}

// Start implements Transport. Stream pairs need no handshake.
func (t *StreamTransport) Start(_ context.Context) error {
	t.log.Debug("Stream transport ready")

	return nil
}

// ReadMessages reads newline-delimited JSON frames until EOF or context
// cancellation. Malformed frames are reported as *DecodeError and skipped.
func (t *StreamTransport) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		scanner := bufio.NewScanner(t.r)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var msg map[string]any

			if err := json.Unmarshal(line, &msg); err != nil {
				t.log.Debug("Failed to unmarshal inbound frame", "error", err)

				select {
				case errs <- &DecodeError{RawData: string(line), Err: err}:
				case <-ctx.Done():
					return
				}

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error on inbound stream", "error", err)

			select {
			case errs <- fmt.Errorf("scanner error: %w", err):
			case <-ctx.Done():
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one frame followed by a newline. The caller's buffer
// is never mutated; a newline-terminated copy is written when needed.
func (t *StreamTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	if _, err := t.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Close marks the transport closed. The underlying streams belong to the
// caller and are left open.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	t.log.Debug("Stream transport closed")

	return nil
}
