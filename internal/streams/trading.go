package streams

import (
	"log/slog"
	"sync"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// TradingConfig holds trading adapter configuration.
type TradingConfig struct {
	OrderHistory int
	TradeHistory int
}

// DefaultTradingConfig returns sensible defaults.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		OrderHistory: 200,
		TradeHistory: 500,
	}
}

// Trading projects account-wide trading streams: capped newest-first
// order and trade lists with upsert by ID, open positions by symbol,
// and the latest account snapshot. A position update with zero quantity
// removes the position.
type Trading struct {
	core   Core
	cfg    TradingConfig
	logger *slog.Logger
	regs   registrations

	mu        sync.RWMutex
	orders    []schema.Order
	trades    []schema.Trade
	positions map[string]schema.Position
	account   *schema.Account
}

// NewTrading creates a trading adapter over the streaming core.
func NewTrading(core Core, cfg TradingConfig, logger *slog.Logger) *Trading {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTradingConfig()
	if cfg.OrderHistory < 1 {
		cfg.OrderHistory = def.OrderHistory
	}
	if cfg.TradeHistory < 1 {
		cfg.TradeHistory = def.TradeHistory
	}
	return &Trading{
		core:      core,
		cfg:       cfg,
		logger:    logger,
		positions: make(map[string]schema.Position),
	}
}

// SubscribeOrders streams order state updates.
func (t *Trading) SubscribeOrders(fn func(schema.Order)) func() {
	unsub := t.core.Subscribe(schema.ChannelTrading, schema.TypeOrder,
		schema.StreamParams{}, func(msg schema.Inbound) {
			order, ok := decodePayload[schema.Order](t.logger, schema.TypeOrder, msg)
			if !ok {
				return
			}
			t.mu.Lock()
			t.orders = upsertFront(t.orders, order, t.cfg.OrderHistory,
				func(o schema.Order) string { return o.OrderID })
			t.mu.Unlock()
			if fn != nil {
				fn(order)
			}
		})
	return t.regs.add(unsub)
}

// SubscribeTrades streams executed fills.
func (t *Trading) SubscribeTrades(fn func(schema.Trade)) func() {
	unsub := t.core.Subscribe(schema.ChannelTrading, schema.TypeTrade,
		schema.StreamParams{}, func(msg schema.Inbound) {
			trade, ok := decodePayload[schema.Trade](t.logger, schema.TypeTrade, msg)
			if !ok {
				return
			}
			t.mu.Lock()
			t.trades = upsertFront(t.trades, trade, t.cfg.TradeHistory,
				func(tr schema.Trade) string { return tr.TradeID })
			t.mu.Unlock()
			if fn != nil {
				fn(trade)
			}
		})
	return t.regs.add(unsub)
}

// SubscribePositions streams position updates.
func (t *Trading) SubscribePositions(fn func(schema.Position)) func() {
	unsub := t.core.Subscribe(schema.ChannelTrading, schema.TypePosition,
		schema.StreamParams{}, func(msg schema.Inbound) {
			pos, ok := decodePayload[schema.Position](t.logger, schema.TypePosition, msg)
			if !ok {
				return
			}
			t.mu.Lock()
			if pos.Quantity.IsZero() {
				delete(t.positions, pos.Symbol)
			} else {
				t.positions[pos.Symbol] = pos
			}
			t.mu.Unlock()
			if fn != nil {
				fn(pos)
			}
		})
	return t.regs.add(unsub)
}

// SubscribeAccount streams account balance snapshots.
func (t *Trading) SubscribeAccount(fn func(schema.Account)) func() {
	unsub := t.core.Subscribe(schema.ChannelTrading, schema.TypeAccount,
		schema.StreamParams{}, func(msg schema.Inbound) {
			acct, ok := decodePayload[schema.Account](t.logger, schema.TypeAccount, msg)
			if !ok {
				return
			}
			t.mu.Lock()
			t.account = &acct
			t.mu.Unlock()
			if fn != nil {
				fn(acct)
			}
		})
	return t.regs.add(unsub)
}

// Orders returns a copy of the order list, newest first.
func (t *Trading) Orders() []schema.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schema.Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Trades returns a copy of the trade list, newest first.
func (t *Trading) Trades() []schema.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schema.Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Position returns the open position for symbol.
func (t *Trading) Position(symbol string) (schema.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[symbol]
	return p, ok
}

// Positions returns every open position keyed by symbol.
func (t *Trading) Positions() map[string]schema.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]schema.Position, len(t.positions))
	for sym, p := range t.positions {
		out[sym] = p
	}
	return out
}

// Account returns the latest account snapshot.
func (t *Trading) Account() (schema.Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.account == nil {
		return schema.Account{}, false
	}
	return *t.account, true
}

// Close releases every registration this adapter made.
func (t *Trading) Close() {
	t.regs.closeAll()
}

// upsertFront prepends v, removing any earlier entry with the same key
// and trimming to cap. The list stays newest first.
func upsertFront[T any](list []T, v T, capacity int, key func(T) string) []T {
	id := key(v)
	for i, existing := range list {
		if key(existing) == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	list = append([]T{v}, list...)
	if len(list) > capacity {
		list = list[:capacity]
	}
	return list
}
