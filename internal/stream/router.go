package stream

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// Taxonomy maps a message type to its channel, for inbound messages
// that omit the channel field. Types absent from the table fall back to
// the system channel.
type Taxonomy map[string]string

// DefaultTaxonomy returns the platform's static classification table.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		schema.TypeTick:           schema.ChannelMarket,
		schema.TypeDepth:          schema.ChannelMarket,
		schema.TypeKline:          schema.ChannelMarket,
		schema.TypeOrder:          schema.ChannelTrading,
		schema.TypeTrade:          schema.ChannelTrading,
		schema.TypePosition:       schema.ChannelTrading,
		schema.TypeAccount:        schema.ChannelTrading,
		schema.TypeStrategyStatus: schema.ChannelStrategy,
		schema.TypeStrategyLog:    schema.ChannelStrategy,
		schema.TypeStrategySignal: schema.ChannelStrategy,
	}
}

// ChannelFor resolves the channel for a message type.
func (t Taxonomy) ChannelFor(msgType string) string {
	if ch, ok := t[msgType]; ok {
		return ch
	}
	return schema.ChannelSystem
}

// RouterStats contains routing counters.
type RouterStats struct {
	Received       int64
	Dispatched     int64
	Dropped        int64
	ParseErrors    int64
	ConsumerPanics int64
}

// Router classifies inbound messages to subscription keys and invokes
// the registered consumers.
type Router struct {
	registry *Registry
	taxonomy Taxonomy
	logger   *slog.Logger

	mu    sync.Mutex
	stats RouterStats
}

// NewRouter creates a message router over a registry. A nil taxonomy
// falls back to DefaultTaxonomy.
func NewRouter(registry *Registry, taxonomy Taxonomy, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &Router{
		registry: registry,
		taxonomy: taxonomy,
		logger:   logger,
	}
}

// Dispatch routes one raw inbound message. A malformed payload yields a
// ProtocolError for the caller to log; the router itself stays usable.
// A message matching no subscription is dropped silently — that is the
// expected race while an unsubscribe is in flight, not a defect.
func (r *Router) Dispatch(data []byte) error {
	r.count(func(s *RouterStats) { s.Received++ })

	var msg schema.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		r.count(func(s *RouterStats) { s.ParseErrors++ })
		return &ProtocolError{Err: err}
	}
	if msg.Type == "" {
		r.count(func(s *RouterStats) { s.ParseErrors++ })
		return &ProtocolError{Err: errors.New("missing message type")}
	}

	channel := msg.Channel
	if channel == "" {
		channel = r.taxonomy.ChannelFor(msg.Type)
		msg.Channel = channel
	}

	disc := schema.ExtractDiscriminator(msg.Data)
	targets := r.registry.match(channel, msg.Type, disc)
	if len(targets) == 0 {
		r.count(func(s *RouterStats) { s.Dropped++ })
		r.logger.Debug("no subscription for message, dropping",
			"channel", channel,
			"type", msg.Type,
		)
		return nil
	}

	for _, tgt := range targets {
		for _, fn := range tgt.consumers {
			r.invoke(tgt.key, fn, msg)
		}
	}
	r.count(func(s *RouterStats) { s.Dispatched++ })
	return nil
}

// invoke runs one consumer with failure isolation: a panicking consumer
// is logged and the remaining consumers still run.
func (r *Router) invoke(key Key, fn Consumer, msg schema.Inbound) {
	defer func() {
		if p := recover(); p != nil {
			r.count(func(s *RouterStats) { s.ConsumerPanics++ })
			r.logger.Error("consumer failed",
				"key", key.String(),
				"panic", p,
			)
		}
	}()
	fn(msg)
}

// Stats returns current routing counters.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Router) count(update func(*RouterStats)) {
	r.mu.Lock()
	update(&r.stats)
	r.mu.Unlock()
}
