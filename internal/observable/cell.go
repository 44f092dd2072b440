// Package observable provides a single-value reactive holder.
//
// A Cell applies every change immediately under its lock, then delivers the
// change to subscribers outside the lock. Deliveries are queued: a Set issued
// while a delivery pass is running (from inside a listener or from another
// goroutine) is applied at once and its notification is delivered after the
// current one completes, in order. Nothing is dropped and no listener is ever
// re-entered.
package observable

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Listener receives the new value and the value it replaced.
type Listener[T any] func(value, previous T)

// EqualFunc reports whether two values are the same for notification purposes.
type EqualFunc[T any] func(a, b T) bool

type subscription[T any] struct {
	id     uint64
	fn     Listener[T]
	once   bool
	active atomic.Bool
}

type change[T any] struct {
	value, previous T
}

// Cell holds a value and notifies subscribers when it changes.
type Cell[T any] struct {
	mu         sync.Mutex
	value      T
	equal      EqualFunc[T]
	subs       []*subscription[T]
	nextID     uint64
	pending    []change[T]
	delivering bool
	onError    func(error)
}

// Option configures a Cell.
type Option func(*options)

type options struct {
	onError func(error)
}

// WithErrorHandler receives listener panics. The default logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// New creates a cell. A nil equal falls back to reflect.DeepEqual.
func New[T any](initial T, equal EqualFunc[T], opts ...Option) *Cell[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.onError == nil {
		o.onError = func(err error) {
			slog.Default().Error("observable listener failed", "err", err)
		}
	}
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	return &Cell[T]{value: initial, equal: equal, onError: o.onError}
}

// NewComparable creates a cell compared with ==.
func NewComparable[T comparable](initial T, opts ...Option) *Cell[T] {
	return New(initial, func(a, b T) bool { return a == b }, opts...)
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v and notifies subscribers if it differs from the current value.
// It reports whether the value changed.
func (c *Cell[T]) Set(v T) bool {
	changed, _ := c.Update(func(T) (T, error) { return v, nil })
	return changed
}

// Update computes the next value from the current one under the cell's lock.
// fn must not call back into the cell. If fn fails nothing changes.
func (c *Cell[T]) Update(fn func(current T) (T, error)) (bool, error) {
	changed, drain, err := c.apply(fn)
	if drain {
		c.drain()
	}
	return changed, err
}

// apply runs fn and stores its result under the lock. It reports whether this
// caller must drain the queue. The lock is released even if fn panics.
func (c *Cell[T]) apply(fn func(current T) (T, error)) (changed, drain bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.value)
	if err != nil {
		return false, false, err
	}
	if c.equal(c.value, next) {
		return false, false, nil
	}
	c.pending = append(c.pending, change[T]{value: next, previous: c.value})
	c.value = next
	if c.delivering {
		return true, false, nil
	}
	c.delivering = true
	return true, true, nil
}

// drain delivers queued changes until the queue is empty. Only one goroutine
// drains at a time.
func (c *Cell[T]) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		ch := c.pending[0]
		c.pending = c.pending[1:]
		subs := make([]*subscription[T], len(c.subs))
		copy(subs, c.subs)
		c.mu.Unlock()

		for _, s := range subs {
			if s.once {
				if !s.active.CompareAndSwap(true, false) {
					continue
				}
				c.remove(s.id)
			} else if !s.active.Load() {
				continue
			}
			c.call(s.fn, ch)
		}
	}
}

func (c *Cell[T]) call(fn Listener[T], ch change[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.onError(fmt.Errorf("observable: listener panic: %v", r))
		}
	}()
	fn(ch.value, ch.previous)
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cell[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	return c.add(fn, false)
}

// Once registers fn for the next change only.
func (c *Cell[T]) Once(fn Listener[T]) (unsubscribe func()) {
	return c.add(fn, true)
}

func (c *Cell[T]) add(fn Listener[T], once bool) func() {
	c.mu.Lock()
	c.nextID++
	s := &subscription[T]{id: c.nextID, fn: fn, once: once}
	s.active.Store(true)
	c.subs = append(c.subs, s)
	c.mu.Unlock()

	return func() {
		s.active.Store(false)
		c.remove(s.id)
	}
}

func (c *Cell[T]) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Next blocks until the value changes or ctx is done.
func (c *Cell[T]) Next(ctx context.Context) (T, error) {
	got := make(chan T, 1)
	unsubscribe := c.Once(func(v, _ T) { got <- v })
	select {
	case v := <-got:
		return v, nil
	case <-ctx.Done():
		unsubscribe()
		var zero T
		return zero, ctx.Err()
	}
}

// Subscribers returns the number of registered listeners.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close removes every listener.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.active.Store(false)
	}
}
