package conn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wu-shaobing/quant-platform-stream/internal/transport"
	"github.com/wu-shaobing/quant-platform-stream/internal/transport/transporttest"
)

func testConfig() Config {
	return Config{
		ConnectTimeout:     time.Second,
		ReconnectBaseDelay: 2 * time.Millisecond,
		ReconnectMaxDelay:  10 * time.Millisecond,
		InboundBufferSize:  64,
	}
}

// eventRecorder collects lifecycle events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	errs   []error
}

func (r *eventRecorder) listen(event Event, err error) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *eventRecorder) count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// countingResub records ResubscribeAll invocations.
type countingResub struct {
	mu    sync.Mutex
	calls int
}

func (c *countingResub) ResubscribeAll() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingResub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// blockingDialer never completes until the dial context is canceled.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context) (transport.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_Connect(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	rec := &eventRecorder{}

	m := NewManager(testConfig(), dialer, nil, nil)
	m.OnEvent(rec.listen)

	if m.State() != StateIdle {
		t.Errorf("initial State() = %v, want idle", m.State())
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if m.State() != StateConnected {
		t.Errorf("State() = %v, want connected", m.State())
	}
	if rec.count(EventConnect) != 1 {
		t.Errorf("connect events = %d, want 1", rec.count(EventConnect))
	}

	m.Disconnect()

	if m.State() != StateDisconnected {
		t.Errorf("State() after Disconnect = %v, want disconnected", m.State())
	}
	if rec.count(EventDisconnect) != 1 {
		t.Errorf("disconnect events = %d, want 1", rec.count(EventDisconnect))
	}
}

func TestManager_ConnectIdempotent(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	m := NewManager(testConfig(), dialer, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}

	if dialer.DialCount() != 1 {
		t.Errorf("DialCount() = %d, want 1", dialer.DialCount())
	}
}

func TestManager_ConnectTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 10 * time.Millisecond

	m := NewManager(cfg, blockingDialer{}, nil, nil)
	defer m.Disconnect()

	err := m.Connect(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Errorf("error type = %T, want *ConnectionError", err)
	}
	if m.State() != StateIdle {
		t.Errorf("State() after failed connect = %v, want idle", m.State())
	}
}

func TestManager_ConnectAfterDisconnect(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	m := NewManager(testConfig(), dialer, nil, nil)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()

	if err := m.Connect(context.Background()); err != ErrClosed {
		t.Errorf("Connect after Disconnect = %v, want ErrClosed", err)
	}
}

func TestManager_ReconnectOnConnectionLoss(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	rec := &eventRecorder{}
	resub := &countingResub{}

	m := NewManager(testConfig(), dialer, nil, nil)
	m.OnEvent(rec.listen)
	m.SetResubscriber(resub)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if resub.count() != 1 {
		t.Fatalf("resubscribe calls after connect = %d, want 1", resub.count())
	}

	dialer.Last().Fail(errors.New("read: connection reset"))

	waitFor(t, time.Second, func() bool {
		return m.State() == StateConnected && dialer.DialCount() == 2
	}, "manager never reconnected")

	if rec.count(EventReconnectAttempt) < 1 {
		t.Error("no reconnect-attempt event emitted")
	}
	if rec.count(EventReconnected) != 1 {
		t.Errorf("reconnected events = %d, want 1", rec.count(EventReconnected))
	}
	if resub.count() != 2 {
		t.Errorf("resubscribe calls = %d, want 2 (connect + reconnect)", resub.count())
	}
}

func TestManager_ReconnectBacksOff(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	m := NewManager(testConfig(), dialer, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Three failed redials before the fourth succeeds.
	dialer.FailNext(3, errors.New("dial refused"))
	dialer.Last().Fail(errors.New("connection reset"))

	waitFor(t, 2*time.Second, func() bool {
		return m.State() == StateConnected && dialer.DialCount() == 5
	}, "manager never recovered")

	if dialer.DialCount() != 5 {
		t.Errorf("DialCount() = %d, want 5 (connect + 3 failures + success)", dialer.DialCount())
	}
}

func TestManager_FailedAfterMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 3

	dialer := transporttest.NewFakeDialer()
	rec := &eventRecorder{}

	m := NewManager(cfg, dialer, nil, nil)
	m.OnEvent(rec.listen)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	dialer.FailNext(100, errors.New("dial refused"))
	dialer.Last().Fail(errors.New("connection reset"))

	waitFor(t, 2*time.Second, func() bool {
		return m.State() == StateFailed
	}, "manager never entered failed state")

	rec.mu.Lock()
	var exhausted bool
	for _, err := range rec.errs {
		if errors.Is(err, ErrReconnectExhausted) {
			exhausted = true
		}
	}
	rec.mu.Unlock()
	if !exhausted {
		t.Error("no error event carrying ErrReconnectExhausted")
	}

	// 1 initial connect + 3 reconnect attempts.
	if dialer.DialCount() != 4 {
		t.Errorf("DialCount() = %d, want 4", dialer.DialCount())
	}
}

func TestManager_DisconnectCancelsReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectBaseDelay = 50 * time.Millisecond

	dialer := transporttest.NewFakeDialer()
	m := NewManager(cfg, dialer, nil, nil)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	dialer.Last().Fail(errors.New("connection reset"))

	waitFor(t, time.Second, func() bool {
		return m.State() == StateReconnecting
	}, "manager never entered reconnecting")

	m.Disconnect()

	if m.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", m.State())
	}

	// The pending backoff timer is canceled: no further dials happen.
	dials := dialer.DialCount()
	time.Sleep(150 * time.Millisecond)
	if dialer.DialCount() != dials {
		t.Errorf("DialCount() grew from %d to %d after Disconnect", dials, dialer.DialCount())
	}
}

func TestManager_SendNotConnected(t *testing.T) {
	m := NewManager(testConfig(), transporttest.NewFakeDialer(), nil, nil)
	defer m.Disconnect()

	if err := m.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestManager_SendAndReceive(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	m := NewManager(testConfig(), dialer, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := m.Send([]byte(`{"action":"subscribe"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	sent := dialer.Last().Sent()
	if len(sent) != 1 {
		t.Fatalf("sent messages = %d, want 1", len(sent))
	}

	dialer.Last().Deliver([]byte(`{"type":"tick"}`))

	select {
	case msg := <-m.Messages():
		if string(msg) != `{"type":"tick"}` {
			t.Errorf("message = %s, want tick envelope", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestManager_InboundSurvivesReconnect(t *testing.T) {
	dialer := transporttest.NewFakeDialer()
	m := NewManager(testConfig(), dialer, nil, nil)
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	dialer.Last().Fail(errors.New("connection reset"))
	waitFor(t, time.Second, func() bool {
		return m.State() == StateConnected && dialer.DialCount() == 2
	}, "manager never reconnected")

	dialer.Last().Deliver([]byte(`{"type":"tick","data":{}}`))

	select {
	case <-m.Messages():
	case <-time.After(time.Second):
		t.Fatal("messages channel dead after reconnect")
	}
}
