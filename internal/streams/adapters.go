package streams

import (
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"github.com/wu-shaobing/quant-platform-stream/internal/clock"
	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
	"github.com/wu-shaobing/quant-platform-stream/internal/stream"
)

// Core is the slice of the streaming service the adapters need.
// *stream.Service satisfies it.
type Core interface {
	Subscribe(channel, typ string, params schema.StreamParams, fn stream.Consumer) func()
	Clock() clock.Clock
}

// registrations tracks an adapter's live unsubscribe functions so Close
// can release them all at once.
type registrations struct {
	mu     sync.Mutex
	next   int
	subs   map[int]func()
	closed bool
}

// add records unsub and returns an idempotent release for it. After
// closeAll, unsub is invoked immediately and a no-op is returned.
func (r *registrations) add(unsub func()) func() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsub()
		return func() {}
	}
	if r.subs == nil {
		r.subs = make(map[int]func())
	}
	r.next++
	id := r.next
	r.subs[id] = unsub
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			unsub()
		})
	}
}

// closeAll releases every live registration. Idempotent.
func (r *registrations) closeAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

// decodePayload unmarshals one message's data into T, logging and
// reporting failure so the caller can skip the update.
func decodePayload[T any](logger *slog.Logger, kind string, msg schema.Inbound) (T, bool) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		logger.Warn("dropping malformed payload", "kind", kind, "error", err)
		return v, false
	}
	return v, true
}
