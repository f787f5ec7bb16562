package streams

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

func TestTrading_OrderUpsertNewestFirst(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, DefaultTradingConfig(), nil)
	defer tr.Close()

	tr.SubscribeOrders(nil)

	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o1", Status: "new"})
	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o2", Status: "new"})
	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o1", Status: "filled"})

	orders := tr.Orders()
	if len(orders) != 2 {
		t.Fatalf("order count = %d, want 2 (upsert, not append)", len(orders))
	}
	if orders[0].OrderID != "o1" || orders[0].Status != "filled" {
		t.Errorf("orders[0] = %s/%s, want o1/filled (newest first)", orders[0].OrderID, orders[0].Status)
	}
	if orders[1].OrderID != "o2" {
		t.Errorf("orders[1] = %s, want o2", orders[1].OrderID)
	}
}

func TestTrading_OrderHistoryCapped(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, TradingConfig{OrderHistory: 2, TradeHistory: 2}, nil)
	defer tr.Close()

	tr.SubscribeOrders(nil)

	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o1"})
	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o2"})
	core.deliver(t, schema.ChannelTrading, schema.TypeOrder, schema.Order{OrderID: "o3"})

	orders := tr.Orders()
	if len(orders) != 2 {
		t.Fatalf("order count = %d, want 2", len(orders))
	}
	if orders[0].OrderID != "o3" || orders[1].OrderID != "o2" {
		t.Errorf("orders = [%s %s], want [o3 o2]", orders[0].OrderID, orders[1].OrderID)
	}
}

func TestTrading_TradeUpsert(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, DefaultTradingConfig(), nil)
	defer tr.Close()

	var fills []schema.Trade
	tr.SubscribeTrades(func(f schema.Trade) { fills = append(fills, f) })

	core.deliver(t, schema.ChannelTrading, schema.TypeTrade, schema.Trade{TradeID: "t1", Symbol: "AAPL"})
	core.deliver(t, schema.ChannelTrading, schema.TypeTrade, schema.Trade{TradeID: "t2", Symbol: "AAPL"})

	if len(fills) != 2 {
		t.Fatalf("consumer invocations = %d, want 2", len(fills))
	}
	trades := tr.Trades()
	if len(trades) != 2 || trades[0].TradeID != "t2" {
		t.Errorf("trades[0] = %s, want t2 (newest first)", trades[0].TradeID)
	}
}

func TestTrading_ZeroQuantityRemovesPosition(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, DefaultTradingConfig(), nil)
	defer tr.Close()

	tr.SubscribePositions(nil)

	core.deliver(t, schema.ChannelTrading, schema.TypePosition, schema.Position{
		Symbol:   "AAPL",
		Side:     "long",
		Quantity: decimal.NewFromInt(100),
	})

	if _, ok := tr.Position("AAPL"); !ok {
		t.Fatal("Position(AAPL) missing after open")
	}

	core.deliver(t, schema.ChannelTrading, schema.TypePosition, schema.Position{
		Symbol:   "AAPL",
		Quantity: decimal.Zero,
	})

	if _, ok := tr.Position("AAPL"); ok {
		t.Error("Position(AAPL) still present after zero-quantity update")
	}
	if got := len(tr.Positions()); got != 0 {
		t.Errorf("Positions() = %d entries, want 0", got)
	}
}

func TestTrading_AccountSnapshot(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, DefaultTradingConfig(), nil)
	defer tr.Close()

	tr.SubscribeAccount(nil)

	if _, ok := tr.Account(); ok {
		t.Fatal("Account() = ok before any snapshot")
	}

	core.deliver(t, schema.ChannelTrading, schema.TypeAccount, schema.Account{
		Currency: "USD",
		Balance:  decimal.NewFromInt(10000),
	})
	core.deliver(t, schema.ChannelTrading, schema.TypeAccount, schema.Account{
		Currency: "USD",
		Balance:  decimal.NewFromInt(9500),
	})

	acct, ok := tr.Account()
	if !ok || acct.Balance.String() != "9500" {
		t.Errorf("Account balance = %v %v, want 9500", acct.Balance, ok)
	}
}

func TestTrading_CloseReleasesRegistrations(t *testing.T) {
	core := newFakeCore()
	tr := NewTrading(core, DefaultTradingConfig(), nil)

	tr.SubscribeOrders(nil)
	tr.SubscribeTrades(nil)
	tr.SubscribePositions(nil)
	tr.SubscribeAccount(nil)

	tr.Close()

	if got := core.activeCount(); got != 0 {
		t.Errorf("active registrations after Close = %d, want 0", got)
	}
}
