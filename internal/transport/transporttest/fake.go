// Package transporttest provides a scriptable in-memory transport for
// tests of the connection manager and the streaming core.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/wu-shaobing/quant-platform-stream/internal/transport"
)

// FakeConn is an in-memory transport.Conn. Tests deliver inbound
// messages with Deliver, inject failures with Fail, and inspect
// outbound traffic with Sent.
type FakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool

	messages chan []byte
	errors   chan error
}

// NewFakeConn creates a connected fake.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		messages: make(chan []byte, 256),
		errors:   make(chan error, 1),
	}
}

func (c *FakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.messages)
	return nil
}

func (c *FakeConn) Messages() <-chan []byte {
	return c.messages
}

func (c *FakeConn) Errors() <-chan error {
	return c.errors
}

// Deliver pushes an inbound message, as if the server had sent it.
func (c *FakeConn) Deliver(data []byte) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.messages <- data
}

// Fail injects a fatal connection error, triggering reconnection in the
// manager, and closes the inbound channel.
func (c *FakeConn) Fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.errors <- err
	close(c.messages)
}

// FailSends makes every subsequent Send return err.
func (c *FakeConn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Sent returns a copy of all messages written to this connection.
func (c *FakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether Close or Fail has been called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeDialer hands out FakeConns and can be scripted to fail a number
// of dial attempts first.
type FakeDialer struct {
	mu        sync.Mutex
	conns     []*FakeConn
	dials     int
	failNext  int
	dialErr   error
	onDial    func(attempt int)
}

// NewFakeDialer creates a dialer whose every Dial succeeds.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{dialErr: errors.New("dial refused")}
}

// FailNext makes the next n Dial calls fail with err (or a default).
func (d *FakeDialer) FailNext(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
	if err != nil {
		d.dialErr = err
	}
}

// OnDial registers a hook invoked with the 1-based attempt number.
func (d *FakeDialer) OnDial(fn func(attempt int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDial = fn
}

func (d *FakeDialer) Dial(ctx context.Context) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dials++
	hook := d.onDial
	attempt := d.dials
	if d.failNext > 0 {
		d.failNext--
		err := d.dialErr
		d.mu.Unlock()
		if hook != nil {
			hook(attempt)
		}
		return nil, err
	}
	c := NewFakeConn()
	d.conns = append(d.conns, c)
	d.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}
	return c, nil
}

// DialCount returns the number of Dial calls, failed ones included.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recently dialed connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Conns returns every successfully dialed connection.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeConn, len(d.conns))
	copy(out, d.conns)
	return out
}
