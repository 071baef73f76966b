package core

import "time"

// Clock supplies a monotonic millisecond counter. The counter wraps after
// about 49.7 days; all comparisons against it must use unsigned subtraction
// so the wrap is harmless.
type Clock interface {
	Millis() uint32
}

// SystemClock is the production clock, counting from process start. The Go
// runtime's time package is monotonic on both host and TinyGo builds.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// ManualClock is a settable clock for replay sessions and tests.
type ManualClock struct {
	now uint32
}

func (c *ManualClock) Millis() uint32 {
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(ms uint32) {
	c.now += ms
}

// Set jumps the clock to an absolute value, wraps included.
func (c *ManualClock) Set(ms uint32) {
	c.now = ms
}
