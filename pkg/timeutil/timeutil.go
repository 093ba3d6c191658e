// Package timeutil centralizes the wall clock so tests can pin it.
package timeutil

import (
	"sync/atomic"
	"time"
)

type clockFn func() time.Time

var clock atomic.Pointer[clockFn]

func init() { Reset() }

// Now returns the current time in UTC from the active clock.
func Now() time.Time {
	return (*clock.Load())().UTC()
}

// SetNow replaces the clock. Use Reset to restore the wall clock.
func SetNow(fn func() time.Time) {
	f := clockFn(fn)
	clock.Store(&f)
}

func Reset() {
	f := clockFn(time.Now)
	clock.Store(&f)
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Stepper returns a clock that starts at start and advances by step on every call.
func Stepper(start time.Time, step time.Duration) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		i := n.Add(1) - 1
		return start.Add(time.Duration(i) * step)
	}
}
