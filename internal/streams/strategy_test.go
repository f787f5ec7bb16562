package streams

import (
	"testing"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

func TestStrategy_LatestStatus(t *testing.T) {
	core := newFakeCore()
	s := NewStrategy(core, DefaultStrategyConfig(), nil)
	defer s.Close()

	s.SubscribeStatus("grid-1", nil)

	core.deliver(t, schema.ChannelStrategy, schema.TypeStrategyStatus, schema.StrategyStatus{
		StrategyID: "grid-1",
		Status:     "running",
	})
	core.deliver(t, schema.ChannelStrategy, schema.TypeStrategyStatus, schema.StrategyStatus{
		StrategyID: "grid-1",
		Status:     "paused",
	})

	st, ok := s.Status("grid-1")
	if !ok || st.Status != "paused" {
		t.Errorf("Status = %v %v, want paused", st.Status, ok)
	}
}

func TestStrategy_StatusFilterByID(t *testing.T) {
	core := newFakeCore()
	s := NewStrategy(core, DefaultStrategyConfig(), nil)
	defer s.Close()

	var invocations int
	s.SubscribeStatus("grid-1", func(schema.StrategyStatus) { invocations++ })

	core.deliver(t, schema.ChannelStrategy, schema.TypeStrategyStatus, schema.StrategyStatus{
		StrategyID: "momo-2",
		Status:     "running",
	})

	if invocations != 0 {
		t.Errorf("invocations for foreign strategy = %d, want 0", invocations)
	}
}

func TestStrategy_LogHistoryCapped(t *testing.T) {
	core := newFakeCore()
	s := NewStrategy(core, StrategyConfig{LogHistory: 2, SignalHistory: 2}, nil)
	defer s.Close()

	s.SubscribeLogs("grid-1", nil)

	for _, msg := range []string{"one", "two", "three"} {
		core.deliver(t, schema.ChannelStrategy, schema.TypeStrategyLog, schema.StrategyLog{
			StrategyID: "grid-1",
			Level:      "info",
			Message:    msg,
		})
	}

	logs := s.Logs("grid-1")
	if len(logs) != 2 {
		t.Fatalf("log history = %d, want 2", len(logs))
	}
	if logs[0].Message != "two" || logs[1].Message != "three" {
		t.Errorf("logs = [%s %s], want [two three]", logs[0].Message, logs[1].Message)
	}
}

func TestStrategy_SignalsPerStrategy(t *testing.T) {
	core := newFakeCore()
	s := NewStrategy(core, DefaultStrategyConfig(), nil)
	defer s.Close()

	// Empty strategy ID subscribes to every strategy's signals.
	s.SubscribeSignals("", nil)

	core.deliver(t, schema.ChannelStrategy, schema.TypeStrategySignal, schema.StrategySignal{
		StrategyID: "grid-1",
		Symbol:     "AAPL",
		Action:     "buy",
	})
	core.deliver(t, schema.ChannelStrategy, schema.TypeStrategySignal, schema.StrategySignal{
		StrategyID: "momo-2",
		Symbol:     "MSFT",
		Action:     "sell",
	})

	if got := len(s.Signals("grid-1")); got != 1 {
		t.Errorf("Signals(grid-1) = %d, want 1", got)
	}
	if got := len(s.Signals("momo-2")); got != 1 {
		t.Errorf("Signals(momo-2) = %d, want 1", got)
	}
}

func TestStrategy_CloseReleasesRegistrations(t *testing.T) {
	core := newFakeCore()
	s := NewStrategy(core, DefaultStrategyConfig(), nil)

	s.SubscribeStatus("grid-1", nil)
	s.SubscribeLogs("grid-1", nil)
	s.SubscribeSignals("grid-1", nil)

	s.Close()

	if got := core.activeCount(); got != 0 {
		t.Errorf("active registrations after Close = %d, want 0", got)
	}
}
