package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source. Services read it through NowFunc, so
// tests can walk across meal days and venue windows deterministically.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts the clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the tracked instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps to t.
func (c *Clock) Set(t time.Time) {
	c.update(func(time.Time) time.Time { return t })
}

// Advance moves forward by d.
func (c *Clock) Advance(d time.Duration) time.Time {
	return c.update(func(cur time.Time) time.Time { return cur.Add(d) })
}

// SetWallClock keeps the current calendar date and location and changes the
// time of day, e.g. to 23:59 just before the quota resets.
func (c *Clock) SetWallClock(hour, minute int) time.Time {
	return c.update(func(cur time.Time) time.Time {
		y, m, d := cur.Date()
		return time.Date(y, m, d, hour, minute, 0, 0, cur.Location())
	})
}

// NextDay moves to the same wall-clock time on the following calendar day.
func (c *Clock) NextDay() time.Time {
	return c.update(func(cur time.Time) time.Time { return cur.AddDate(0, 0, 1) })
}

func (c *Clock) update(fn func(time.Time) time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = fn(c.current)
	return c.current
}
