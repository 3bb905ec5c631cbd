package testutil

import "time"

// StepClock is a clock tests move by hand
type StepClock struct {
	Unix int64
}

// NewStepClock returns a clock reading unix seconds
func NewStepClock(unix int64) *StepClock {
	return &StepClock{Unix: unix}
}

// Now returns the current reading
func (c *StepClock) Now() time.Time {
	return time.Unix(c.Unix, 0)
}

// Advance moves the clock forward by d
func (c *StepClock) Advance(d time.Duration) {
	c.Unix += int64(d / time.Second)
}
