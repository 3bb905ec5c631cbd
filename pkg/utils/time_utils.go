package utils

import (
	"time"
)

// Clock supplies the current time. Stores and engines take one so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock
type ClockFunc func() time.Time

// Now returns f()
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}

// EpochSeconds returns the current time of clock in seconds since epoch
func EpochSeconds(clock Clock) int64 {
	return clock.Now().Unix()
}

// IsWithinWindow reports whether ts lies no more than window before now
func IsWithinWindow(ts, now int64, window time.Duration) bool {
	return now-ts <= int64(window/time.Second)
}
