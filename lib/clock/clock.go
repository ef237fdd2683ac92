// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the git service needs: reading
// the current time, one-shot deferred calls, and periodic ticks.
// Production code injects Real(); tests inject Fake() and advance it
// deterministically.
//
// Components that own timers (notably the sideband session manager)
// take a Clock field instead of calling the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine. The returned Timer cancels the pending call with
	// Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C every d.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a scheduled one-shot call created by AfterFunc.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns true if the call
// stops the timer, false if it has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks on C. Call Stop when done; Stop
// does not close C.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No ticks are delivered after Stop
// returns.
func (t *Ticker) Stop() { t.stopFunc() }
