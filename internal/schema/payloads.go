package schema

import "github.com/shopspring/decimal"

// Tick is a market tick (last price update) for one symbol.
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Change decimal.Decimal `json:"change"`
	Ts     int64           `json:"ts"`
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth is an order book snapshot for one symbol.
type Depth struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
	Ts     int64        `json:"ts"`
}

// Kline is one candlestick for a (symbol, interval) pair.
type Kline struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	OpenTime int64           `json:"open_time"`
}

// Order is an order state update.
type Order struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"` // "buy" or "sell"
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Filled   decimal.Decimal `json:"filled"`
	Status   string          `json:"status"`
	Ts       int64           `json:"ts"`
}

// Trade is an executed fill.
type Trade struct {
	TradeID  string          `json:"trade_id"`
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Ts       int64           `json:"ts"`
}

// Position is a position update. Quantity zero means the position is closed.
type Position struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"` // "long" or "short"
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Ts            int64           `json:"ts"`
}

// Account is an account balance snapshot.
type Account struct {
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Margin    decimal.Decimal `json:"margin"`
	Ts        int64           `json:"ts"`
}

// StrategyStatus is the latest state of a running strategy.
type StrategyStatus struct {
	StrategyID string          `json:"strategy_id"`
	Status     string          `json:"status"` // "running", "paused", "stopped", "error"
	PnL        decimal.Decimal `json:"pnl"`
	Ts         int64           `json:"ts"`
}

// StrategyLog is one log line emitted by a strategy.
type StrategyLog struct {
	StrategyID string `json:"strategy_id"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	Ts         int64  `json:"ts"`
}

// StrategySignal is a trading signal emitted by a strategy.
type StrategySignal struct {
	StrategyID string          `json:"strategy_id"`
	Symbol     string          `json:"symbol"`
	Action     string          `json:"action"` // "buy", "sell", "close"
	Price      decimal.Decimal `json:"price"`
	Ts         int64           `json:"ts"`
}

// Notification is a platform notification.
type Notification struct {
	ID      string `json:"id"`
	Level   string `json:"level"` // "info", "warning", "error"
	Title   string `json:"title"`
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// Alert is a triggered alert (price alert, risk alert).
type Alert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Message  string `json:"message"`
	Ts       int64  `json:"ts"`
}
