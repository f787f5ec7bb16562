// Package clock abstracts time so that timing-dependent behavior
// (trailing-edge throttling, reconnect backoff waits) is testable
// with a deterministic fake.
package clock

import "time"

// Clock provides the time primitives used by the streaming core.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time after d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc runs f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable pending callback or channel delivery.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was still pending.
	Stop() bool
}

// System returns a Clock backed by the standard time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
