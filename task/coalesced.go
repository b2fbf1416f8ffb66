package task

import (
	"context"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/reactor"
)

// Coalesced runs fn at most once per scheduling window: Schedule while a
// run is pending does nothing. Arguments are bound by the closure passed to
// NewCoalesced.
type Coalesced[T any] struct {
	sched Scheduler
	fn    func() (T, error)

	mu      sync.Mutex
	pending reactor.DelayedCall
	next    chan struct{}

	// serializes runs, including external Fire calls
	fireMu sync.Mutex
}

func NewCoalesced[T any](sched Scheduler, fn func() (T, error)) *Coalesced[T] {
	return &Coalesced[T]{
		sched: sched,
		fn:    fn,
	}
}

// Schedule arranges a run after delay unless one is already pending. The
// delay of a pending run is not changed.
func (c *Coalesced[T]) Schedule(delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil
	}
	call, err := c.sched.CallLater(delay, c.scheduled)
	if err != nil {
		return err
	}
	c.pending = call
	return nil
}

// Pending reports whether a run is scheduled.
func (c *Coalesced[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Cancel drops the pending run, if any. Waiters stay registered for the
// next run.
func (c *Coalesced[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}

func (c *Coalesced[T]) scheduled() {
	if _, err := c.Fire(); err != nil {
		c.sched.ReportError(err)
	}
}

// Fire runs fn now. A pending run is consumed by it, so Schedule called
// from inside fn arranges a fresh one. Every waiter registered before fn
// returns is released, even when fn fails or panics. fn must not call Fire.
func (c *Coalesced[T]) Fire() (T, error) {
	c.fireMu.Lock()
	defer c.fireMu.Unlock()

	c.mu.Lock()
	if c.pending != nil {
		// no-op when this run is the pending call itself
		c.pending.Cancel()
		c.pending = nil
	}
	c.mu.Unlock()

	defer c.release()
	return c.fn()
}

func (c *Coalesced[T]) release() {
	c.mu.Lock()
	ch := c.next
	c.next = nil
	c.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Next returns a channel closed when the next run completes. Use it
// instead of Wait on the reactor goroutine.
func (c *Coalesced[T]) Next() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == nil {
		c.next = make(chan struct{})
	}
	return c.next
}

// Wait blocks until the next run completes or ctx is done. Calling it from
// the reactor goroutine deadlocks.
func (c *Coalesced[T]) Wait(ctx context.Context) error {
	next := c.Next()
	select {
	case <-next:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
