package core

import "time"

// Clock provides the current time to components that make time-based
// decisions. The indirection lets tests pin the clock.
type Clock interface {
	Now() time.Time
}

// RealClock returns actual system time
type RealClock struct{}

// Now returns the current system time
func (RealClock) Now() time.Time {
	return time.Now()
}
