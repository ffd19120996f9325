package clock

import (
	"math"
	"time"
)

// DefaultStart is the virtual time, in milliseconds, a new clock starts at
// unless told otherwise. It is far enough from zero that tests can work with
// negative offsets.
const DefaultStart int64 = 1_000_000

// VirtualClock holds the current fake time and the auto-advance increment.
//
// Times are integer milliseconds. A VirtualClock is owned by a single
// scheduler and is not safe for concurrent use.
type VirtualClock struct {
	now         int64
	autoAdvance int64
}

// NewVirtualClock creates a VirtualClock starting at start milliseconds.
func NewVirtualClock(start int64) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the current virtual time in milliseconds.
func (c *VirtualClock) Now() int64 {
	return c.now
}

// Time returns the current virtual time as a time.Time.
func (c *VirtualClock) Time() time.Time {
	return time.UnixMilli(c.now)
}

// AutoAdvance returns the amount added to the wait budget after each fired
// command.
func (c *VirtualClock) AutoAdvance() int64 {
	return c.autoAdvance
}

// SetAutoAdvance sets the auto-advance increment. The value is not
// validated here; the scheduler rejects a budget that goes negative.
func (c *VirtualClock) SetAutoAdvance(ms int64) {
	c.autoAdvance = ms
}

// AdvanceTo moves the clock to t. Earlier times are ignored.
func (c *VirtualClock) AdvanceTo(t int64) {
	if t < c.now {
		return
	}
	c.now = t
}

// Add moves the clock forward by ms, stopping at math.MaxInt64. Negative
// amounts are ignored.
func (c *VirtualClock) Add(ms int64) {
	if ms <= 0 {
		return
	}
	if ms > math.MaxInt64-c.now {
		c.now = math.MaxInt64
		return
	}
	c.now += ms
}

// AsClock returns a Clock view of c for code written against time.Time.
func (c *VirtualClock) AsClock() Clock {
	return virtualView{c}
}

type virtualView struct {
	c *VirtualClock
}

func (v virtualView) Now() time.Time {
	return v.c.Time()
}

func (v virtualView) Since(t time.Time) time.Duration {
	return v.c.Time().Sub(t)
}

func (v virtualView) Until(t time.Time) time.Duration {
	return t.Sub(v.c.Time())
}
