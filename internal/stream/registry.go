package stream

import (
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/wu-shaobing/quant-platform-stream/internal/conn"
	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// Key uniquely identifies one logical stream within the registry.
type Key struct {
	Channel string
	Type    string
	Params  string // canonical fingerprint of the stream parameters
}

// NewKey builds a Key from a channel, message type, and parameters.
func NewKey(channel, typ string, params schema.StreamParams) Key {
	return Key{Channel: channel, Type: typ, Params: params.Fingerprint()}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Channel + "/" + k.Type
	}
	return k.Channel + "/" + k.Type + "/" + k.Params
}

// Consumer receives dispatched messages for one subscription.
type Consumer func(msg schema.Inbound)

// ControlLink is the slice of the connection manager the registry needs
// to emit subscribe/unsubscribe control messages.
type ControlLink interface {
	Send(data []byte) error
	State() conn.State
}

// Subscription is one logical stream and its registered consumers.
type Subscription struct {
	Key    Key
	Params schema.StreamParams

	consumers []consumerEntry // registration order
}

type consumerEntry struct {
	id uint64
	fn Consumer
}

// Registry tracks logical subscriptions and replays them after
// reconnects. Keys are unique; a Subscription exists exactly while it
// has at least one consumer.
type Registry struct {
	link   ControlLink
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[Key]*Subscription
	order  []Key // insertion order, drives replay
	nextID uint64
}

// NewRegistry creates a subscription registry bound to a control link.
func NewRegistry(link ControlLink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		link:   link,
		logger: logger,
		subs:   make(map[Key]*Subscription),
	}
}

// Subscribe registers a consumer for the stream identified by
// (channel, typ, params) and returns its idempotent unsubscribe
// function. The first consumer of a new key triggers a subscribe
// control message when connected; otherwise the registration waits for
// the next connected transition — there is no data to lose yet.
func (r *Registry) Subscribe(channel, typ string, params schema.StreamParams, fn Consumer) func() {
	key := NewKey(channel, typ, params)

	r.mu.Lock()
	sub, exists := r.subs[key]
	if !exists {
		sub = &Subscription{Key: key, Params: params}
		r.subs[key] = sub
		r.order = append(r.order, key)
	}
	r.nextID++
	id := r.nextID
	sub.consumers = append(sub.consumers, consumerEntry{id: id, fn: fn})
	r.mu.Unlock()

	if !exists {
		r.sendControl(schema.ActionSubscribe, key, params)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.unsubscribe(key, id)
		})
	}
}

// unsubscribe removes one consumer. When the consumer set empties, the
// key is deleted so it is never replayed, and an unsubscribe control
// message goes out if connected.
func (r *Registry) unsubscribe(key Key, id uint64) {
	r.mu.Lock()
	sub, ok := r.subs[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	for i, c := range sub.consumers {
		if c.id == id {
			sub.consumers = append(sub.consumers[:i], sub.consumers[i+1:]...)
			break
		}
	}
	last := len(sub.consumers) == 0
	var params schema.StreamParams
	if last {
		params = sub.Params
		delete(r.subs, key)
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if last {
		r.sendControl(schema.ActionUnsubscribe, key, params)
	}
}

// ResubscribeAll replays subscribe control messages for every live
// subscription, in insertion order. The connection manager calls it
// once per successful (re)connection, before settling into Connected,
// so sends bypass the connected-state gate.
func (r *Registry) ResubscribeAll() {
	type replay struct {
		key    Key
		params schema.StreamParams
	}

	r.mu.Lock()
	items := make([]replay, 0, len(r.order))
	for _, key := range r.order {
		if sub := r.subs[key]; sub != nil && len(sub.consumers) > 0 {
			items = append(items, replay{key: key, params: sub.Params})
		}
	}
	r.mu.Unlock()

	for _, it := range items {
		r.send(schema.ActionSubscribe, it.key, it.params)
	}
	if len(items) > 0 {
		r.logger.Info("resubscribed active streams", "count", len(items))
	}
}

// Active returns the live subscription keys in insertion order.
func (r *Registry) Active() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Key, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// dispatchTarget is a snapshot of one subscription's consumers, taken
// so that a consumer callback may subscribe or unsubscribe without
// corrupting the set being iterated.
type dispatchTarget struct {
	key       Key
	consumers []Consumer
}

// match snapshots every subscription on (channel, typ) whose parameters
// accept the message discriminator, in insertion order.
func (r *Registry) match(channel, typ string, disc schema.Discriminator) []dispatchTarget {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []dispatchTarget
	for _, key := range r.order {
		if key.Channel != channel || key.Type != typ {
			continue
		}
		sub := r.subs[key]
		if sub == nil || !sub.Params.Matches(disc) {
			continue
		}
		consumers := make([]Consumer, len(sub.consumers))
		for i, c := range sub.consumers {
			consumers[i] = c.fn
		}
		targets = append(targets, dispatchTarget{key: key, consumers: consumers})
	}
	return targets
}

// sendControl emits a control message if connected; otherwise the
// registration stays queued for the next connected transition.
func (r *Registry) sendControl(action string, key Key, params schema.StreamParams) {
	if r.link.State() != conn.StateConnected {
		r.logger.Debug("control deferred until connected",
			"action", action,
			"key", key.String(),
		)
		return
	}
	r.send(action, key, params)
}

// send emits a control message unconditionally. Failures are logged as
// SubscriptionError and absorbed: the registry state already reflects
// the caller's intent and is replayed on the next reconnect.
func (r *Registry) send(action string, key Key, params schema.StreamParams) {
	msg := schema.Control{
		ID:           uuid.NewString(),
		Action:       action,
		Channel:      key.Channel,
		Type:         key.Type,
		StreamParams: params,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal control message", "error", err)
		return
	}

	if err := r.link.Send(data); err != nil {
		serr := &SubscriptionError{Action: action, Key: key, Err: err}
		r.logger.Warn("control send failed", "error", serr)
		return
	}
	r.logger.Debug("control sent", "action", action, "key", key.String())
}
