package streams

import (
	"log/slog"
	"sync"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// StrategyConfig holds strategy adapter configuration.
type StrategyConfig struct {
	LogHistory    int
	SignalHistory int
}

// DefaultStrategyConfig returns sensible defaults.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		LogHistory:    500,
		SignalHistory: 200,
	}
}

// Strategy projects strategy streams: latest status plus capped log and
// signal histories, all keyed by strategy ID.
type Strategy struct {
	core   Core
	cfg    StrategyConfig
	logger *slog.Logger
	regs   registrations

	mu       sync.RWMutex
	statuses map[string]schema.StrategyStatus
	logs     map[string][]schema.StrategyLog
	signals  map[string][]schema.StrategySignal
}

// NewStrategy creates a strategy adapter over the streaming core.
func NewStrategy(core Core, cfg StrategyConfig, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultStrategyConfig()
	if cfg.LogHistory < 1 {
		cfg.LogHistory = def.LogHistory
	}
	if cfg.SignalHistory < 1 {
		cfg.SignalHistory = def.SignalHistory
	}
	return &Strategy{
		core:     core,
		cfg:      cfg,
		logger:   logger,
		statuses: make(map[string]schema.StrategyStatus),
		logs:     make(map[string][]schema.StrategyLog),
		signals:  make(map[string][]schema.StrategySignal),
	}
}

// SubscribeStatus streams status updates for one strategy, or for all
// strategies when strategyID is empty.
func (s *Strategy) SubscribeStatus(strategyID string, fn func(schema.StrategyStatus)) func() {
	unsub := s.core.Subscribe(schema.ChannelStrategy, schema.TypeStrategyStatus,
		schema.StreamParams{StrategyID: strategyID}, func(msg schema.Inbound) {
			st, ok := decodePayload[schema.StrategyStatus](s.logger, schema.TypeStrategyStatus, msg)
			if !ok {
				return
			}
			s.mu.Lock()
			s.statuses[st.StrategyID] = st
			s.mu.Unlock()
			if fn != nil {
				fn(st)
			}
		})
	return s.regs.add(unsub)
}

// SubscribeLogs streams log lines for one strategy (empty = all).
func (s *Strategy) SubscribeLogs(strategyID string, fn func(schema.StrategyLog)) func() {
	unsub := s.core.Subscribe(schema.ChannelStrategy, schema.TypeStrategyLog,
		schema.StreamParams{StrategyID: strategyID}, func(msg schema.Inbound) {
			line, ok := decodePayload[schema.StrategyLog](s.logger, schema.TypeStrategyLog, msg)
			if !ok {
				return
			}
			s.mu.Lock()
			s.logs[line.StrategyID] = appendCapped(s.logs[line.StrategyID], line, s.cfg.LogHistory)
			s.mu.Unlock()
			if fn != nil {
				fn(line)
			}
		})
	return s.regs.add(unsub)
}

// SubscribeSignals streams trading signals for one strategy (empty = all).
func (s *Strategy) SubscribeSignals(strategyID string, fn func(schema.StrategySignal)) func() {
	unsub := s.core.Subscribe(schema.ChannelStrategy, schema.TypeStrategySignal,
		schema.StreamParams{StrategyID: strategyID}, func(msg schema.Inbound) {
			sig, ok := decodePayload[schema.StrategySignal](s.logger, schema.TypeStrategySignal, msg)
			if !ok {
				return
			}
			s.mu.Lock()
			s.signals[sig.StrategyID] = appendCapped(s.signals[sig.StrategyID], sig, s.cfg.SignalHistory)
			s.mu.Unlock()
			if fn != nil {
				fn(sig)
			}
		})
	return s.regs.add(unsub)
}

// Status returns the latest status for one strategy.
func (s *Strategy) Status(strategyID string) (schema.StrategyStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[strategyID]
	return st, ok
}

// Logs returns a copy of one strategy's log history, oldest first.
func (s *Strategy) Logs(strategyID string) []schema.StrategyLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.logs[strategyID]
	out := make([]schema.StrategyLog, len(list))
	copy(out, list)
	return out
}

// Signals returns a copy of one strategy's signal history, oldest first.
func (s *Strategy) Signals(strategyID string) []schema.StrategySignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.signals[strategyID]
	out := make([]schema.StrategySignal, len(list))
	copy(out, list)
	return out
}

// Close releases every registration this adapter made.
func (s *Strategy) Close() {
	s.regs.closeAll()
}

// appendCapped appends v, dropping the oldest entry at capacity.
func appendCapped[T any](list []T, v T, capacity int) []T {
	if len(list) == capacity {
		copy(list, list[1:])
		list[len(list)-1] = v
		return list
	}
	return append(list, v)
}
