// Package admission implements the process-wide gate that bounds concurrent
// client sessions (§4.6).
package admission

import "sync"

// Controller tracks active sessions against a fixed ceiling. Acquire blocks
// the caller's accept loop while the ceiling is reached; Release frees a
// slot and wakes one waiter. max is immutable after construction.
type Controller struct {
	mu     sync.Mutex
	cond   *sync.Cond
	active int
	max    int
}

// New creates a controller bounding concurrent sessions to max.
func New(max int) *Controller {
	c := &Controller{max: max}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Acquire blocks while active >= max, then reserves a slot.
func (c *Controller) Acquire() {
	c.mu.Lock()
	for c.active >= c.max {
		c.cond.Wait()
	}
	c.active++
	c.mu.Unlock()
}

// Release frees a previously-acquired slot and wakes one waiter, if any.
func (c *Controller) Release() {
	c.mu.Lock()
	c.active--
	c.cond.Signal()
	c.mu.Unlock()
}

// Active returns the current number of admitted sessions.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Max returns the configured ceiling.
func (c *Controller) Max() int {
	return c.max
}
