// Package debounce delays propagation of a changing value until it has been
// stable for a quiescence interval.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiescence interval used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Timer is a pending deferred callback.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Value.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Value mirrors a rapidly changing input and emits it only after the input
// has been stable for the configured delay.
//
// Each Set cancels the pending timer and arms a new one. A timer callback
// that lost a race with a newer Set finds a stale generation and does
// nothing, so at most one emission happens per quiescence window and it
// always carries the latest input.
type Value[T any] struct {
	mu       sync.Mutex
	emitMu   sync.Mutex // serializes onSettle calls
	clock    Clock
	delay    time.Duration
	latest   T
	settled  T
	timer    Timer
	gen      uint64
	closed   bool
	onSettle func(T)
}

// New creates a debounced value holding initial. onSettle may be nil.
// A non-positive delay means DefaultDelay.
func New[T any](delay time.Duration, initial T, onSettle func(T), opts ...Option) *Value[T] {
	o := options{clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}

	return &Value[T]{
		clock:    o.clock,
		delay:    delay,
		latest:   initial,
		settled:  initial,
		onSettle: onSettle,
	}
}

// Set records a new input and restarts the quiescence timer.
// Calls after Close are ignored.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.latest = x
	v.gen++
	gen := v.gen
	v.timer = v.clock.AfterFunc(v.delay, func() { v.fire(gen) })
}

// Latest returns the last settled value.
func (v *Value[T]) Latest() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

// Pending reports whether an input is waiting for its quiescence window.
func (v *Value[T]) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timer != nil
}

// Delay returns the quiescence interval.
func (v *Value[T]) Delay() time.Duration {
	return v.delay
}

// Close cancels any pending emission. No emission starts after Close returns.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	v.gen++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *Value[T]) fire(gen uint64) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return
	}
	v.settled = v.latest
	v.timer = nil
	value := v.settled
	onSettle := v.onSettle
	v.mu.Unlock()

	if onSettle != nil {
		onSettle(value)
	}
}
