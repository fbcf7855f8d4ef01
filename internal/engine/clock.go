package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// The planner, the store and the timer table all read "now" through it.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
