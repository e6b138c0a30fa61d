// Package clock abstracts timer scheduling so components that retry or
// expire entries (the channel manager, the toast queue) can be driven by a
// fake clock in tests. No repo in our dependency set ships a fake clock, so
// the surface is kept to the two calls we actually need.
package clock

import "time"

// Timer is a single scheduled callback. Stop reports whether the timer was
// stopped before firing.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	// AfterFunc runs f on its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }
