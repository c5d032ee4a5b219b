package task

import "sync/atomic"

// Clock counts host frames.
type Clock struct {
	frame atomic.Uint64
}

// Advance moves to the next frame and returns its number.
func (c *Clock) Advance() uint64 {
	return c.frame.Add(1)
}

// Frame returns the current frame number.
func (c *Clock) Frame() uint64 {
	return c.frame.Load()
}

// Reset returns the clock to frame 0.
func (c *Clock) Reset() {
	c.frame.Store(0)
}
