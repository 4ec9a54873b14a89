// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Deskshare-server shares one keyboard and mouse with remote screens
// that speak the synergy 1.x protocol.
//
// Without a command it runs the server: screens connect on the listen
// address, and the admin socket answers the commands below. With a
// command it acts as a client of a running server's admin socket and
// prints the result as JSON:
//
//	deskshare-server list-screens
//	deskshare-server status
//	deskshare-server clipboard NAME [--selection]
//	deskshare-server disconnect-screen NAME
package main
