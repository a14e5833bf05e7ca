// Package transport carries framed JSON messages over a duplex byte stream.
//
// The session loop only depends on the Transport interface; the concrete
// framing here is newline-delimited JSON, which keeps the server usable
// over stdio pipes and sockets alike.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransportClosed indicates a send after Close.
var ErrTransportClosed = errors.New("transport closed")

// DecodeError indicates a single inbound frame that was not valid JSON.
// The stream itself stays usable; readers should log and continue.
type DecodeError struct {
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode inbound frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Transport is the duplex channel the session loop serves over.
type Transport interface {
	// Start prepares the transport for communication. It is called once,
	// before any read or write.
	Start(ctx context.Context) error

	// ReadMessages returns channels yielding decoded inbound messages and
	// read-side errors. Both channels close when the stream ends or the
	// context is cancelled. A *DecodeError on the error channel is
	// recoverable; any other error is fatal to the session.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage writes one complete JSON message. Safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport. Safe to call multiple times.
	Close() error
}
