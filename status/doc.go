// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package status carries coarse connection status out of the session
// core to whatever presents it: the admin socket, a log line, a tray
// icon in some other process.
//
// Client proxies post through a [Publisher] at connect, ready,
// disconnect and error. [Broadcaster] fans updates out to channel
// subscribers and remembers the latest update per sender. [Nop]
// discards everything and is the default when nothing is listening.
//
// Posting never blocks: a subscriber whose buffer is full misses the
// update and can recover the current state from [Broadcaster.Last].
package status
