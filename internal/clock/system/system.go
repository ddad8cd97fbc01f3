// Package system provides the wall clock used outside of tests.
package system

import "time"

// Clock implements console.Clock. Now keeps the monotonic reading, so task
// durations are immune to wall clock steps.
type Clock struct{}

// New returns the system clock.
func New() Clock {
	return Clock{}
}

// Now returns the current local time with its monotonic reading.
func (Clock) Now() time.Time {
	return time.Now()
}

// UTC returns the current time in UTC, for timestamps sent to viewers.
func (Clock) UTC() time.Time {
	return time.Now().UTC()
}
