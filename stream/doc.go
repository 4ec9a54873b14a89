// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream defines the byte stream a client proxy talks to its
// remote screen over, and the TCP implementation the server uses.
//
// A [Stream] is ordered and reliable. Writes may be buffered; Flush
// blocks until every buffered byte has been handed to the transport, and
// is always bounded (by the caller's context and by the stream's own
// flush timeout), so a close notice can never wedge the server on an
// unresponsive peer. Close is idempotent and releases the transport.
//
// Every failure surfaces as an [*Error] whose [Kind] is ConnectionReset,
// Timeout or Closed. The transport's own error stays reachable through
// errors.Unwrap, so errors.Is(err, io.EOF) keeps working for callers
// that care about the difference between a clean remote close and a
// reset.
//
// [Conn] adapts a net.Conn. Package streamtest provides an in-memory
// recording stream for tests.
package stream
