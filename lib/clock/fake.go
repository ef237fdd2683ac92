// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. Timers and tickers
// fire only when Advance moves the clock past their deadline.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order. Do not call Advance from within a callback — that would
// deadlock.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is one pending timer or ticker.
type fakeWaiter struct {
	deadline time.Time

	// callback is set for AfterFunc waiters, channel for tickers.
	callback func()
	channel  chan time.Time

	// interval is non-zero for tickers; after firing the waiter is
	// rescheduled at deadline + interval.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to run when the clock advances past d from
// now. If d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		wasActive := !waiter.stopped && !waiter.fired
		waiter.stopped = true
		return wasActive
	}}
}

// NewTicker returns a Ticker that fires each time Advance crosses a
// multiple of d. Ticks are delivered on a buffered channel of
// capacity 1; ticks the consumer misses are dropped, matching
// time.Ticker.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.waiters = append(c.waiters, waiter)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Advance moves the clock forward by d, firing every waiter whose
// deadline falls within the window in deadline order. Tickers may
// fire multiple times in one Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)

	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.current = next.deadline

		if next.interval > 0 {
			// Ticker: non-blocking send, then reschedule.
			select {
			case next.channel <- next.deadline:
			default:
			}
			next.deadline = next.deadline.Add(next.interval)
			continue
		}

		next.fired = true
		callback := next.callback
		// Run the callback without the lock so it can use the clock.
		c.mu.Unlock()
		callback()
		c.mu.Lock()
	}

	c.current = target
	c.removeDeadLocked()
	c.mu.Unlock()
}

// nextDueLocked returns the unstopped waiter with the earliest
// deadline at or before target, or nil if none is due.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	live := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			live = append(live, waiter)
		}
	}
	c.waiters = live

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}
	return c.waiters[0]
}

// removeDeadLocked drops fired and stopped waiters.
func (c *FakeClock) removeDeadLocked() {
	live := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			live = append(live, waiter)
		}
	}
	c.waiters = live
}
