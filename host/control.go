package host

import "sync"

// control carries requests from the ebiten goroutine to the emulation
// goroutine. Requests are applied between frames.
type control struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool
	reset   bool
}

func newControl() *control {
	c := &control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// TogglePause flips the pause state and returns the new one.
func (c *control) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
	c.cond.Broadcast()
	return c.paused
}

// Paused reports whether emulation is paused.
func (c *control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// RequestReset asks for a reset before the next frame. It is honoured even
// while paused, once emulation resumes.
func (c *control) RequestReset() {
	c.mu.Lock()
	c.reset = true
	c.mu.Unlock()
}

// Stop ends the emulation loop and releases a paused one.
func (c *control) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// next is called by the emulation goroutine before each frame. It blocks
// while paused and reports whether to keep running and whether a reset
// was requested since the last call.
func (c *control) next() (run, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.paused && !c.stopped {
		c.cond.Wait()
	}
	if c.stopped {
		return false, false
	}
	reset, c.reset = c.reset, false
	return true, reset
}
