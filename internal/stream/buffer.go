package stream

import (
	"sync"
	"time"

	"github.com/wu-shaobing/quant-platform-stream/internal/clock"
)

// Record is one buffered stream entry. Sequence is a strictly
// increasing per-buffer counter assigned at receipt time, usable to
// detect gaps or out-of-order delivery downstream.
type Record[T any] struct {
	Data      T
	Timestamp time.Time
	Sequence  uint64
}

// Buffer keeps the last capacity records of one stream, evicting the
// oldest on overflow, and optionally throttles emission: with a window
// configured, updates arriving within one window coalesce and only the
// most recent is delivered at the window boundary (trailing edge).
//
// History is cleared only by explicit Clear or Reset calls; reconnects
// never touch it.
type Buffer[T any] struct {
	clk      clock.Clock
	capacity int
	window   time.Duration
	emit     func(Record[T])

	mu      sync.Mutex
	records []Record[T]
	seq     uint64
	pending *Record[T]
	timer   clock.Timer
}

// NewBuffer creates a buffer with the given capacity. window 0 disables
// throttling: every record is emitted immediately. emit may be nil for
// history-only buffers.
func NewBuffer[T any](capacity int, window time.Duration, clk clock.Clock, emit func(Record[T])) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Buffer[T]{
		clk:      clk,
		capacity: capacity,
		window:   window,
		emit:     emit,
		records:  make([]Record[T], 0, capacity),
	}
}

// Push appends a record, assigns its sequence number, and schedules or
// performs emission. It returns the stored record.
func (b *Buffer[T]) Push(data T) Record[T] {
	b.mu.Lock()
	b.seq++
	rec := Record[T]{Data: data, Timestamp: b.clk.Now(), Sequence: b.seq}

	if len(b.records) == b.capacity {
		copy(b.records, b.records[1:])
		b.records[len(b.records)-1] = rec
	} else {
		b.records = append(b.records, rec)
	}

	if b.emit == nil {
		b.mu.Unlock()
		return rec
	}

	if b.window <= 0 {
		b.mu.Unlock()
		// Emit outside the lock so consumers may re-enter the buffer.
		b.emit(rec)
		return rec
	}

	b.pending = &rec
	if b.timer == nil {
		b.timer = b.clk.AfterFunc(b.window, b.fire)
	}
	b.mu.Unlock()
	return rec
}

// fire delivers the latest coalesced record at the window boundary.
func (b *Buffer[T]) fire() {
	b.mu.Lock()
	rec := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if rec != nil {
		b.emit(*rec)
	}
}

// Records returns a copy of the buffered history, oldest first.
func (b *Buffer[T]) Records() []Record[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record[T], len(b.records))
	copy(out, b.records)
	return out
}

// Latest returns the most recent record, if any.
func (b *Buffer[T]) Latest() (Record[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == 0 {
		var zero Record[T]
		return zero, false
	}
	return b.records[len(b.records)-1], true
}

// Len returns the number of buffered records.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Clear drops the buffered history. The sequence counter keeps running
// so sequences stay strictly increasing across the clear.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	b.records = b.records[:0]
	b.mu.Unlock()
}

// Reset drops history, cancels any pending throttled emission, and
// restarts the sequence counter.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	b.records = b.records[:0]
	b.seq = 0
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
}
