package testutil

import "sync/atomic"

// Clock is a logical clock numbering harness trace events.
//
// Scenarios never read wall-clock time, so a run is reproducible byte for
// byte. The first call to Next returns 1.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, 0 if none.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock so the same scenario can be replayed.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
