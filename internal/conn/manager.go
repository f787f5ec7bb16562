package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/wu-shaobing/quant-platform-stream/internal/clock"
	"github.com/wu-shaobing/quant-platform-stream/internal/transport"
)

var errPeerClosed = errors.New("connection closed by peer")

// Manager owns the transport lifecycle for one session.
//
// State machine:
//
//	Idle → Connecting → Connected ⇄ Reconnecting → {Disconnected | Failed}
//
// Disconnected (explicit) and Failed (retry budget exhausted) are terminal.
type Manager struct {
	cfg     Config
	dialer  transport.Dialer
	clk     clock.Clock
	logger  *slog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	// Inbound fan-in, stable across reconnects.
	inbound chan []byte

	mu        sync.Mutex
	state     State
	conn      transport.Conn
	closing   bool
	listeners []Listener
	resub     Resubscriber
}

// NewManager creates a connection manager. The dialer supplies
// (pre-authenticated) connections; the manager redials through it after
// unexpected losses.
func NewManager(cfg Config, dialer transport.Dialer, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	def := DefaultConfig()
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.InboundBufferSize == 0 {
		cfg.InboundBufferSize = def.InboundBufferSize
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		clk:     clk,
		logger:  logger,
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		inbound: make(chan []byte, cfg.InboundBufferSize),
	}
}

// SetResubscriber wires the subscription registry replayed after each
// successful (re)connection.
func (m *Manager) SetResubscriber(r Resubscriber) {
	m.mu.Lock()
	m.resub = r
	m.mu.Unlock()
}

// OnEvent registers a lifecycle event listener.
func (m *Manager) OnEvent(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Messages returns the inbound message channel. The channel survives
// reconnects; consumers never observe a connection swap.
func (m *Manager) Messages() <-chan []byte {
	return m.inbound
}

// Connect opens the transport. It is idempotent while a connection is
// up or being established, returns ErrClosed after Disconnect or a
// terminal failure, and otherwise blocks until the attempt succeeds or
// its timeout elapses.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected, StateReconnecting:
		m.mu.Unlock()
		return nil
	case StateDisconnected, StateFailed:
		m.mu.Unlock()
		return ErrClosed
	}
	m.state = StateConnecting
	m.mu.Unlock()

	c, err := m.dial(ctx)
	if err != nil {
		m.setState(StateIdle)
		cerr := &ConnectionError{Op: "connect", Err: err}
		m.emit(EventError, cerr)
		return cerr
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		c.Close()
		return ErrClosed
	}
	m.conn = c
	m.mu.Unlock()

	go m.pump(c)

	// Registrations made before the connection was up are replayed now.
	if r := m.resubscriber(); r != nil {
		r.ResubscribeAll()
	}

	m.setState(StateConnected)
	m.logger.Info("connected")
	m.emit(EventConnect, nil)
	return nil
}

// Disconnect tears the session down. It cancels any pending reconnect
// backoff, closes the transport, and leaves the manager in the terminal
// Disconnected state. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	c := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.cancel()
	if c != nil {
		c.Close()
	}
	m.logger.Info("disconnected")
	m.emit(EventDisconnect, nil)
}

// Send writes one message to the transport, pacing bursts through the
// configured rate limiter. Sends are accepted while a connection is
// present, including during resubscription replay.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	if err := m.limiter.Wait(m.ctx); err != nil {
		return ErrClosed
	}
	return c.Send(data)
}

func (m *Manager) dial(ctx context.Context) (transport.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	return m.dialer.Dial(dctx)
}

func (m *Manager) resubscriber() Resubscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resub
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// emit invokes listeners outside the manager lock so they may call back
// into the manager.
func (m *Manager) emit(event Event, err error) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(event, err)
	}
}

// pump forwards one connection's inbound traffic into the stable fan-in
// channel and triggers reconnection when the connection dies.
func (m *Manager) pump(c transport.Conn) {
	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-c.Errors():
			m.connLost(c, err)
			return

		case data, ok := <-c.Messages():
			if !ok {
				m.connLost(c, errPeerClosed)
				return
			}
			select {
			case m.inbound <- data:
			case <-m.ctx.Done():
				return
			default:
				m.logger.Warn("inbound buffer full, dropping message")
			}
		}
	}
}

// connLost handles an unexpected connection loss while Connected.
func (m *Manager) connLost(c transport.Conn, err error) {
	m.mu.Lock()
	if m.closing || m.conn != c {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateReconnecting
	m.mu.Unlock()

	c.Close()
	m.logger.Warn("connection lost", "error", err)
	m.emit(EventError, err)

	go m.reconnectLoop()
}

// reconnectLoop retries with exponential backoff until it succeeds, the
// manager is closed, or the attempt budget runs out. Each attempt is
// bounded by its own timeout, independent of the inter-attempt wait.
func (m *Manager) reconnectLoop() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.ReconnectBaseDelay
	bo.MaxInterval = m.cfg.ReconnectMaxDelay

	for attempt := 1; ; attempt++ {
		if m.cfg.MaxReconnectAttempts > 0 && attempt > m.cfg.MaxReconnectAttempts {
			m.setState(StateFailed)
			m.logger.Error("reconnect attempts exhausted",
				"attempts", m.cfg.MaxReconnectAttempts,
			)
			m.emit(EventError, ErrReconnectExhausted)
			return
		}

		select {
		case <-m.ctx.Done():
			return
		case <-m.clk.After(bo.NextBackOff()):
		}

		m.emit(EventReconnectAttempt, nil)
		m.logger.Info("attempting reconnection", "attempt", attempt)

		c, err := m.dial(m.ctx)
		if err != nil {
			m.logger.Warn("reconnection failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		m.mu.Lock()
		if m.closing {
			m.mu.Unlock()
			c.Close()
			return
		}
		m.conn = c
		m.mu.Unlock()

		go m.pump(c)

		// Replay subscriptions before settling back to Connected.
		m.emit(EventReconnected, nil)
		if r := m.resubscriber(); r != nil {
			r.ResubscribeAll()
		}

		m.setState(StateConnected)
		m.logger.Info("reconnected", "attempt", attempt)
		return
	}
}
