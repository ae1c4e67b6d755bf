package invalidate

import (
	"sync"
	"sync/atomic"
)

// Controller issues monotonically increasing invalidation tokens. Dependent
// views key off the current token and remount whenever it changes, regardless
// of whether their other inputs changed.
type Controller struct {
	token atomic.Uint64
}

// NewController initializes a new invalidation controller.
func NewController() *Controller {
	return &Controller{}
}

// Bump advances the token and returns the new value.
func (c *Controller) Bump() uint64 {
	return c.token.Add(1)
}

// Current returns the current token.
func (c *Controller) Current() uint64 {
	return c.token.Load()
}

// Observer tracks the last token a dependent view was keyed by.
type Observer struct {
	last    uint64
	mounted bool
	mtx     sync.Mutex
}

// Changed reports whether the provided token differs from the last one
// observed and records it. The first observation always reports a change so
// the initial mount happens.
func (o *Observer) Changed(token uint64) bool {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	if o.mounted && o.last == token {
		return false
	}

	o.last = token
	o.mounted = true

	return true
}

// Reset forgets the last observed token, forcing the next observation to
// report a change.
func (o *Observer) Reset() {
	o.mtx.Lock()
	o.mounted = false
	o.mtx.Unlock()
}
