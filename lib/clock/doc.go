// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the sensor cache and the agent
// client.
//
// Components take a [Clock] in their options instead of calling
// time.Now, time.After or time.NewTicker. [Real] wraps the time
// package. [Fake] stands still until [FakeClock.Advance] is called,
// which lets tests drive heartbeats, send intervals and registration
// backoff deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	client := agent.NewClient(config, agent.ClientOptions{Clock: fake})
//	go client.RunHeartbeat(ctx)
//	fake.WaitForTimers(1)          // heartbeat ticker registered
//	fake.Advance(5 * time.Second)  // one heartbeat fires
package clock
