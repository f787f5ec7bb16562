package streams

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/wu-shaobing/quant-platform-stream/internal/clock"
	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
	"github.com/wu-shaobing/quant-platform-stream/internal/stream"
)

// fakeCore is a synchronous stand-in for the streaming service:
// deliver invokes matching consumers inline, so adapter tests are
// deterministic.
type fakeCore struct {
	clk clock.Clock

	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	channel string
	typ     string
	params  schema.StreamParams
	fn      stream.Consumer
	active  bool
}

func newFakeCore() *fakeCore {
	return &fakeCore{clk: clock.NewFake(time.Unix(1700000000, 0))}
}

func (c *fakeCore) Subscribe(channel, typ string, params schema.StreamParams, fn stream.Consumer) func() {
	c.mu.Lock()
	sub := &fakeSub{channel: channel, typ: typ, params: params, fn: fn, active: true}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		sub.active = false
		c.mu.Unlock()
	}
}

func (c *fakeCore) Clock() clock.Clock { return c.clk }

// deliver routes one payload to every live matching consumer.
func (c *fakeCore) deliver(t *testing.T, channel, typ string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg := schema.Inbound{Channel: channel, Type: typ, Data: data}
	disc := schema.ExtractDiscriminator(data)

	c.mu.Lock()
	var targets []stream.Consumer
	for _, sub := range c.subs {
		if sub.active && sub.channel == channel && sub.typ == typ && sub.params.Matches(disc) {
			targets = append(targets, sub.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range targets {
		fn(msg)
	}
}

// activeCount returns the number of live registrations.
func (c *fakeCore) activeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, sub := range c.subs {
		if sub.active {
			n++
		}
	}
	return n
}
