// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clientproxy is the server's view of one connected screen.
//
// A [ClientProxy] owns the screen's [stream.Stream] from the moment the
// server's handshake has agreed a protocol version. Its reader ([ClientProxy.Run])
// drives the session through Connecting, Ready and Disconnected, and
// every transition is published on an [event.Queue] tagged with the
// proxy's [event.Target]:
//
//   - ready, once the screen has reported its shape with DINF
//   - disconnected, exactly once after ready, with a [DisconnectInfo] payload
//   - clipboardChanged and clipboardGrabbed, for clipboard traffic
//   - shapeChanged, when a Ready screen reports a new shape
//
// Once Ready, stream and protocol failures never escape the proxy as
// errors to the layer above: they become the disconnected event. The
// one exception is [ClientProxy.Close], which returns its failure to
// the caller and also folds it into the disconnect. A screen that fails
// while still Connecting publishes nothing; the failure is the result
// of [ClientProxy.Run] and [ClientProxy.WaitReady], which the server
// waits on before it admits the screen.
//
// Protocol versions 1.0 through 1.3 are supported. Each version is a
// dialect: a table of outbound message formats, inbound handlers and a
// liveness mode, chosen once in [New]. Versions 1.0 to 1.2 use an
// optional heartbeat deadline set by the HART option; 1.3 exchanges
// CALV keep-alives and drops a screen after three silent periods.
package clientproxy
