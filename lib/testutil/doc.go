// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so individual tests do not call time.After themselves. Timers
// in the code under test run on a fake clock from lib/clock.
//
// [SocketDir] creates a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. [Listen] opens a loopback TCP
// listener.
//
// [ScreenName] generates distinct screen names so parallel tests sharing
// a server never collide.
//
// All helpers call t.Fatalf on failure.
package testutil
