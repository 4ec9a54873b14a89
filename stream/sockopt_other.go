// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package stream

import (
	"net"
	"time"
)

// setUserTimeout is a no-op where TCP_USER_TIMEOUT does not exist; the
// flush timeout still bounds every blocking write.
func setUserTimeout(net.Conn, time.Duration) error { return nil }
