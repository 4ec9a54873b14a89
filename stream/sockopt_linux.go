// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setUserTimeout sets TCP_USER_TIMEOUT on TCP connections. Other
// connection types are left alone.
func setUserTimeout(conn net.Conn, timeout time.Duration) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw connection: %w", err)
	}
	var sockoptErr error
	controlErr := raw.Control(func(fd uintptr) {
		sockoptErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(timeout.Milliseconds()))
	})
	if controlErr != nil {
		return fmt.Errorf("raw connection control: %w", controlErr)
	}
	if sockoptErr != nil {
		return fmt.Errorf("setting TCP_USER_TIMEOUT: %w", sockoptErr)
	}
	return nil
}
