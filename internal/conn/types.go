package conn

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrClosed             = errors.New("connection manager closed")
	ErrNotConnected       = errors.New("not connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected // terminal: explicit Disconnect
	StateFailed       // terminal: reconnect budget exhausted
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a lifecycle event emitted by the Manager.
type Event string

const (
	EventConnect          Event = "connect"
	EventDisconnect       Event = "disconnect"
	EventError            Event = "error"
	EventReconnectAttempt Event = "reconnect-attempt"
	EventReconnected      Event = "reconnected"
)

// Listener receives lifecycle events. err is non-nil only for EventError.
// Listeners may be invoked from multiple goroutines.
type Listener func(event Event, err error)

// Resubscriber replays active subscriptions after a (re)connection.
// Implemented by the subscription registry.
type Resubscriber interface {
	ResubscribeAll()
}

// ConnectionError reports a failed or timed-out connection attempt.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Config configures the connection manager.
type Config struct {
	ConnectTimeout       time.Duration // Per-attempt dial deadline
	ReconnectBaseDelay   time.Duration // First backoff interval
	ReconnectMaxDelay    time.Duration // Backoff cap
	MaxReconnectAttempts int           // 0 = retry forever (capped backoff)
	SendRate             float64       // Outbound messages per second, 0 = unlimited
	SendBurst            int           // Outbound burst allowance
	InboundBufferSize    int           // Fan-in channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       10 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 0,
		InboundBufferSize:    4096,
	}
}
