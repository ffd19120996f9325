// Package clock provides the time sources used by the scheduler.
//
// VirtualClock is the millisecond counter the scheduler drains against. It
// only moves when the scheduler advances it. Real() wraps the standard time
// package for tooling that needs wall-clock timestamps.
package clock

import "time"

// Clock provides read access to a time source that can be real or virtual.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Until returns the duration until t.
	Until(t time.Time) time.Duration
}
