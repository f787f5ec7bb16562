package streams

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
	"github.com/wu-shaobing/quant-platform-stream/internal/stream"
)

// MarketConfig holds market adapter configuration.
type MarketConfig struct {
	// KlineHistory caps the candle list kept per (symbol, interval).
	KlineHistory int
	// TickThrottle coalesces tick fan-out per subscription: inside one
	// window only the latest tick is delivered, at the window boundary.
	// Zero delivers every tick immediately.
	TickThrottle time.Duration
}

// DefaultMarketConfig returns sensible defaults.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		KlineHistory: 500,
		TickThrottle: 0,
	}
}

type klineKey struct {
	symbol   string
	interval string
}

// Market projects market-data streams into caches: latest tick and
// depth per symbol, a capped candle history per (symbol, interval).
type Market struct {
	core   Core
	cfg    MarketConfig
	logger *slog.Logger
	regs   registrations

	mu     sync.RWMutex
	ticks  map[string]schema.Tick
	depths map[string]schema.Depth
	klines map[klineKey][]schema.Kline
}

// NewMarket creates a market adapter over the streaming core.
func NewMarket(core Core, cfg MarketConfig, logger *slog.Logger) *Market {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KlineHistory < 1 {
		cfg.KlineHistory = DefaultMarketConfig().KlineHistory
	}
	return &Market{
		core:   core,
		cfg:    cfg,
		logger: logger,
		ticks:  make(map[string]schema.Tick),
		depths: make(map[string]schema.Depth),
		klines: make(map[klineKey][]schema.Kline),
	}
}

// SubscribeTicks streams ticks for one symbol. The cache is updated on
// every tick; fn (optional) is fanned out through the throttle window.
func (m *Market) SubscribeTicks(symbol string, fn func(schema.Tick)) func() {
	var deliver func(schema.Tick)
	if fn != nil {
		if m.cfg.TickThrottle > 0 {
			buf := stream.NewBuffer[schema.Tick](1, m.cfg.TickThrottle, m.core.Clock(),
				func(r stream.Record[schema.Tick]) { fn(r.Data) })
			deliver = func(t schema.Tick) { buf.Push(t) }
		} else {
			deliver = fn
		}
	}

	unsub := m.core.Subscribe(schema.ChannelMarket, schema.TypeTick,
		schema.StreamParams{Symbol: symbol}, func(msg schema.Inbound) {
			tick, ok := decodePayload[schema.Tick](m.logger, schema.TypeTick, msg)
			if !ok {
				return
			}
			m.mu.Lock()
			m.ticks[tick.Symbol] = tick
			m.mu.Unlock()
			if deliver != nil {
				deliver(tick)
			}
		})
	return m.regs.add(unsub)
}

// SubscribeDepth streams order book snapshots for one symbol.
func (m *Market) SubscribeDepth(symbol string, fn func(schema.Depth)) func() {
	unsub := m.core.Subscribe(schema.ChannelMarket, schema.TypeDepth,
		schema.StreamParams{Symbol: symbol}, func(msg schema.Inbound) {
			depth, ok := decodePayload[schema.Depth](m.logger, schema.TypeDepth, msg)
			if !ok {
				return
			}
			m.mu.Lock()
			m.depths[depth.Symbol] = depth
			m.mu.Unlock()
			if fn != nil {
				fn(depth)
			}
		})
	return m.regs.add(unsub)
}

// SubscribeKlines streams candles for one (symbol, interval) pair.
func (m *Market) SubscribeKlines(symbol, interval string, fn func(schema.Kline)) func() {
	unsub := m.core.Subscribe(schema.ChannelMarket, schema.TypeKline,
		schema.StreamParams{Symbol: symbol, Interval: interval}, func(msg schema.Inbound) {
			k, ok := decodePayload[schema.Kline](m.logger, schema.TypeKline, msg)
			if !ok {
				return
			}
			key := klineKey{symbol: k.Symbol, interval: k.Interval}
			m.mu.Lock()
			list := m.klines[key]
			if len(list) == m.cfg.KlineHistory {
				copy(list, list[1:])
				list[len(list)-1] = k
			} else {
				list = append(list, k)
			}
			m.klines[key] = list
			m.mu.Unlock()
			if fn != nil {
				fn(k)
			}
		})
	return m.regs.add(unsub)
}

// LastTick returns the latest tick seen for symbol.
func (m *Market) LastTick(symbol string) (schema.Tick, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.ticks[symbol]
	return t, ok
}

// LastDepth returns the latest order book snapshot for symbol.
func (m *Market) LastDepth(symbol string) (schema.Depth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.depths[symbol]
	return d, ok
}

// Klines returns a copy of the candle history for (symbol, interval),
// oldest first.
func (m *Market) Klines(symbol, interval string) []schema.Kline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.klines[klineKey{symbol: symbol, interval: interval}]
	out := make([]schema.Kline, len(list))
	copy(out, list)
	return out
}

// Close releases every registration this adapter made.
func (m *Market) Close() {
	m.regs.closeAll()
}
