// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"fmt"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only through Advance. It is
// safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

// fakeTimer is a pending After channel or ticker.
type fakeTimer struct {
	due     time.Time
	channel chan time.Time

	// every is the ticker interval; zero for one-shot After timers.
	every time.Duration
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot timer that fires when the clock reaches
// now+d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&fakeTimer{due: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker registers a ticker that fires every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic(fmt.Sprintf("clock: non-positive ticker interval %v", d))
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{due: c.now.Add(d), channel: make(chan time.Time, 1), every: d}
	c.addLocked(timer)
	return &Ticker{
		C: timer.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.removeLocked(timer)
		},
		reset: func(d time.Duration) {
			if d <= 0 {
				panic(fmt.Sprintf("clock: non-positive ticker interval %v", d))
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			c.removeLocked(timer)
			timer.every = d
			timer.due = c.now.Add(d)
			c.addLocked(timer)
		},
	}
}

func (c *FakeClock) addLocked(timer *fakeTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

func (c *FakeClock) removeLocked(timer *fakeTimer) {
	for i, candidate := range c.pending {
		if candidate == timer {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d and fires every timer that
// falls due, earliest first. Each tick carries its own due time. A
// ticker spanned by several intervals fires once per interval; ticks
// that find its channel full are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for {
		next := c.earliestDueLocked(target)
		if next == nil {
			break
		}
		c.now = next.due
		select {
		case next.channel <- next.due:
		default:
		}
		if next.every > 0 {
			next.due = next.due.Add(next.every)
		} else {
			c.removeLocked(next)
		}
	}
	c.now = target
}

func (c *FakeClock) earliestDueLocked(target time.Time) *fakeTimer {
	var earliest *fakeTimer
	for _, timer := range c.pending {
		if timer.due.After(target) {
			continue
		}
		if earliest == nil || timer.due.Before(earliest.due) {
			earliest = timer
		}
	}
	return earliest
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// Tests call it between starting a goroutine that waits on the clock
// and advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// Pending returns the number of registered timers and tickers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
