// Package transport abstracts the physical bidirectional connection the
// streaming core multiplexes over. The core depends only on Dialer and
// Conn; a gorilla/websocket implementation ships here, and tests use the
// scriptable fake in transporttest.
package transport

import (
	"context"
	"errors"
)

// Errors shared by transport implementations.
var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrClosed       = errors.New("transport: closed")
	ErrStale        = errors.New("transport: connection stale (no ping)")
)

// Conn is a single established connection. Implementations are owned by
// the connection manager, which redials through a Dialer after failures.
type Conn interface {
	// Send writes one message to the peer.
	Send(data []byte) error

	// Close tears the connection down. Idempotent.
	Close() error

	// Messages returns the channel of inbound messages. It is closed
	// when the connection dies.
	Messages() <-chan []byte

	// Errors returns a channel surfacing fatal connection errors.
	Errors() <-chan error
}

// Dialer opens connections. A session/auth layer supplies a Dialer that
// produces pre-authenticated connections; the core never sees credentials.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
