// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server accepts screen connections, runs the hello exchange
// and keeps the table of connected screens.
//
// [Server.Accept] takes a fresh stream through the handshake: the server
// announces [protocol.Current], the screen answers with its version and
// name, and the server either builds a [clientproxy.ClientProxy] or
// tells the screen why not (EICV for an unsupported version, EUNK for a
// name outside the configured list, EBSY for a name already connected,
// EBAD for a garbled hello) and returns the matching error.
//
// Accepted proxies live in a table keyed by screen name. The server
// subscribes to each proxy's disconnected event and drops and releases
// the proxy when it arrives, so the event queue must be running for
// disconnected screens to leave the table.
//
// [AdminServer] exposes the table on a Unix socket using the CBOR
// request-response envelope of lib/codec.
package server
