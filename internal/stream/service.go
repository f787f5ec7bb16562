package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"github.com/wu-shaobing/quant-platform-stream/internal/clock"
	"github.com/wu-shaobing/quant-platform-stream/internal/conn"
	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
	"github.com/wu-shaobing/quant-platform-stream/internal/transport"
)

// Config configures a streaming service.
type Config struct {
	Conn     conn.Config
	Taxonomy Taxonomy // nil = DefaultTaxonomy
}

// ServiceStats is a snapshot for health reporting.
type ServiceStats struct {
	State         conn.State
	Subscriptions int
	Router        RouterStats
}

// Service is the public surface of the streaming core: one explicit
// instance per session, constructor-injected dialer and taxonomy, no
// process-wide state. It wires a connection manager, registry, and
// router together and runs the single dispatch loop all consumers are
// invoked from.
type Service struct {
	mgr      *conn.Manager
	registry *Registry
	router   *Router
	logger   *slog.Logger
	clk      clock.Clock

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewService creates a streaming service over the given dialer and
// starts its dispatch loop. The connection itself is opened by Connect.
func NewService(cfg Config, dialer transport.Dialer, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}

	mgr := conn.NewManager(cfg.Conn, dialer, clk, logger)
	registry := NewRegistry(mgr, logger)
	mgr.SetResubscriber(registry)
	router := NewRouter(registry, cfg.Taxonomy, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		mgr:      mgr,
		registry: registry,
		router:   router,
		logger:   logger,
		clk:      clk,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	return s
}

// dispatchLoop is the event-processing context: every dispatch, cache
// update, and consumer callback runs on this goroutine.
func (s *Service) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.mgr.Messages():
			if err := s.router.Dispatch(data); err != nil {
				s.logger.Warn("dropping malformed message", "error", err)
			}
		}
	}
}

// Connect opens the underlying connection. See conn.Manager.Connect.
func (s *Service) Connect(ctx context.Context) error {
	return s.mgr.Connect(ctx)
}

// Close disconnects and stops the dispatch loop. Idempotent.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mgr.Disconnect()
		s.cancel()
		s.wg.Wait()
	})
}

// Subscribe registers a consumer for one logical stream and returns its
// unsubscribe function.
func (s *Service) Subscribe(channel, typ string, params schema.StreamParams, fn Consumer) func() {
	return s.registry.Subscribe(channel, typ, params, fn)
}

// Send writes one outbound application message.
func (s *Service) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.mgr.Send(data)
}

// ConnectionState returns the current connection state.
func (s *Service) ConnectionState() conn.State {
	return s.mgr.State()
}

// ActiveSubscriptions returns the live subscription keys in insertion order.
func (s *Service) ActiveSubscriptions() []Key {
	return s.registry.Active()
}

// OnEvent registers a connection lifecycle listener.
func (s *Service) OnEvent(fn conn.Listener) {
	s.mgr.OnEvent(fn)
}

// Clock returns the service clock, shared with adapter buffers.
func (s *Service) Clock() clock.Clock {
	return s.clk
}

// Stats returns a health snapshot.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		State:         s.mgr.State(),
		Subscriptions: s.registry.Len(),
		Router:        s.router.Stats(),
	}
}
