// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the session
// core for handshake deadlines, heartbeat and keep-alive timers.
//
// Production code holds a [Clock] and calls Real() once at construction.
// Tests pass a [FakeClock] and move time explicitly with Advance, waiting
// first with WaitForTimers until the code under test has armed the timer
// it is expected to arm:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	proxy := clientproxy.New(..., clientproxy.Config{Clock: c})
//	c.WaitForTimers(1)
//	c.Advance(9 * time.Second) // three keep-alive periods
package clock
