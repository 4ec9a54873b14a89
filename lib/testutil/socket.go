// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"testing"
)

// SocketDir creates a temporary directory for Unix domain sockets,
// removed when the test completes. t.TempDir paths can exceed the
// sun_path limit.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "deskshare-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// Listen opens a TCP listener on a loopback ephemeral port, closed when
// the test completes.
func Listen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	return listener
}

var screenCounter atomic.Uint64

// ScreenName returns "prefix-N" with N increasing across the process.
func ScreenName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, screenCounter.Add(1))
}
