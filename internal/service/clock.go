// Package service contains the application services of the time-policy
// engine: policy administration, cascade resolution, clock-action validation,
// the override workflow, and break deduction.
package service

import "time"

// Clock supplies the current instant. Injectable so tests can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current instant.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Compile-time interface verification.
var _ Clock = SystemClock{}
