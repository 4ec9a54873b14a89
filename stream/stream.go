// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"io"
)

// Stream is a bidirectional byte channel to one remote screen. A Stream
// is owned by exactly one client proxy. Read is called only from the
// proxy's reader goroutine; Write and Flush may be called from any
// goroutine and must preserve call order.
type Stream interface {
	io.Reader
	io.Writer

	// Flush blocks until all previously written bytes have been accepted
	// by the transport, ctx is done, or the stream's flush bound
	// expires, whichever is first.
	Flush(ctx context.Context) error

	// Close releases the transport. Further reads and writes fail with
	// Kind Closed. Calling Close more than once is harmless.
	Close() error
}
