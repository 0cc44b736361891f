package input

import "time"

// CycleTimer marks the last user or automatic activity. The widget
// auto-advance check reads it; accepted input resets it.
type CycleTimer struct {
	last time.Time
}

// NewCycleTimer starts the timer at boot time.
func NewCycleTimer(now time.Time) *CycleTimer {
	return &CycleTimer{last: now}
}

// Reset marks activity at now.
func (c *CycleTimer) Reset(now time.Time) {
	c.last = now
}

// Last returns the time of the last reset.
func (c *CycleTimer) Last() time.Time {
	return c.last
}

// Due reports whether interval has elapsed since the last reset. An
// interval <= 0 disables auto-advance.
func (c *CycleTimer) Due(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	return now.Sub(c.last) >= interval
}
