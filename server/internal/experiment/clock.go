package experiment

import "time"

// Clock returns monotonic milliseconds since the session started.
type Clock interface {
	NowMs() float64
}

// MonotonicClock reads the runtime's monotonic clock.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) NowMs() float64 {
	return float64(time.Since(c.start)) / float64(time.Millisecond)
}

// ManualClock only moves when told to. Simulations and tests use it.
type ManualClock struct {
	now float64
}

func (c *ManualClock) NowMs() float64 { return c.now }

// Advance moves the clock forward by ms.
func (c *ManualClock) Advance(ms float64) { c.now += ms }

// Set jumps to an absolute time. Going backwards is the caller's problem.
func (c *ManualClock) Set(ms float64) { c.now = ms }
