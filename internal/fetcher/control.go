package fetcher

import (
	"context"
	"sync"
)

// Control is the pause/stop gate a runner consults between fetches.
// In-flight fetches are never interrupted.
type Control struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	// Optional slot hooks. released is true while the runner has given
	// its slot back; acquiring while one goroutine waits to take it again.
	release   func()
	acquire   func(ctx context.Context) bool
	released  bool
	acquiring bool
}

// NewControl returns an open gate.
func NewControl() *Control {
	return &Control{wake: make(chan struct{}), done: make(chan struct{})}
}

// SetSlotHooks makes a parked runner hand back its concurrency slot.
// release is called once when the gate first parks a goroutine; acquire is
// called once before the first fetch after resume and must return false
// when the slot can no longer be taken.
func (c *Control) SetSlotHooks(release func(), acquire func(ctx context.Context) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release = release
	c.acquire = acquire
}

// SlotReleased reports whether the runner currently holds no slot. Only
// meaningful once no goroutine is inside Proceed.
func (c *Control) SlotReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Done is closed by Stop.
func (c *Control) Done() <-chan struct{} {
	return c.done
}

// Pause parks the runner before its next fetch.
func (c *Control) Pause() {
	c.change(func() { c.paused = true })
}

// Resume releases a paused runner.
func (c *Control) Resume() {
	c.change(func() { c.paused = false })
}

// Stop makes the runner exit before its next fetch. Stop wins over Resume.
func (c *Control) Stop() {
	c.change(func() {
		if !c.stopped {
			close(c.done)
		}
		c.stopped = true
	})
}

// Stopped reports whether Stop was called.
func (c *Control) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Paused reports whether the gate is paused.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused && !c.stopped
}

// Proceed blocks while paused. It returns false when the runner must exit
// because of Stop or ctx cancellation.
func (c *Control) Proceed(ctx context.Context) bool {
	for {
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return false
		}
		if !c.paused {
			if !c.released {
				c.mu.Unlock()
				return ctx.Err() == nil
			}
			if !c.acquiring {
				if !c.reacquire(ctx) {
					return false
				}
				continue
			}
		} else if c.release != nil && !c.released && !c.acquiring {
			c.released = true
			c.release()
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return false
		}
	}
}

// reacquire takes the slot back. Called with c.mu held; returns with it
// released.
func (c *Control) reacquire(ctx context.Context) bool {
	c.acquiring = true
	acquire := c.acquire
	c.mu.Unlock()

	ok := acquire(ctx)

	c.mu.Lock()
	c.acquiring = false
	if ok {
		c.released = false
	}
	c.broadcast()
	c.mu.Unlock()
	return ok
}

func (c *Control) change(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	c.broadcast()
}

func (c *Control) broadcast() {
	close(c.wake)
	c.wake = make(chan struct{})
}
