package pacer

import "time"

// TimeProvider is an interface for getting the current time and waiting.
// This allows injecting a mock time provider for deterministic testing.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}

// RealTimeProvider implements TimeProvider using the actual system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// After delegates to time.After.
func (RealTimeProvider) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
