// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Compile-time interface check.
var _ Stream = (*Conn)(nil)

// DefaultFlushTimeout bounds Flush when the caller's context carries no
// earlier deadline.
const DefaultFlushTimeout = 3 * time.Second

// defaultBufferSize fits the largest routine packet (a DINF or a key
// event) many times over. Clipboard payloads bypass the buffer.
const defaultBufferSize = 16 * 1024

// ConnOptions tunes a Conn. Zero values select the defaults.
type ConnOptions struct {
	// FlushTimeout bounds every Flush and every write that spills the
	// buffer. Default DefaultFlushTimeout.
	FlushTimeout time.Duration

	// BufferSize is the write buffer size. Default 16 KiB.
	BufferSize int

	// UserTimeout, when positive and the connection is TCP on Linux,
	// sets TCP_USER_TIMEOUT so the kernel abandons the connection if
	// sent data stays unacknowledged that long.
	UserTimeout time.Duration
}

// Conn is a Stream over a net.Conn with a write buffer.
type Conn struct {
	conn         net.Conn
	flushTimeout time.Duration

	writeMu sync.Mutex
	writer  *bufio.Writer

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps conn. The Conn takes ownership: closing the Conn closes
// conn. A failure to apply UserTimeout is returned alongside a usable
// Conn, since the stream still works without it.
func NewConn(conn net.Conn, options ConnOptions) (*Conn, error) {
	if options.FlushTimeout <= 0 {
		options.FlushTimeout = DefaultFlushTimeout
	}
	if options.BufferSize <= 0 {
		options.BufferSize = defaultBufferSize
	}
	wrapped := &Conn{
		conn:         conn,
		flushTimeout: options.FlushTimeout,
		writer:       bufio.NewWriterSize(conn, options.BufferSize),
	}
	var err error
	if options.UserTimeout > 0 {
		err = setUserTimeout(conn, options.UserTimeout)
	}
	return wrapped, err
}

// RemoteAddr returns the peer address, for logging.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read reads from the connection. Read has no deadline of its own: the
// proxy's liveness timer closes the stream to unblock a silent peer.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, &Error{Kind: Closed, Op: "read"}
	}
	n, err := c.conn.Read(p)
	if err != nil {
		return n, c.wrap("read", err)
	}
	return n, nil
}

// Write buffers p. If the buffer fills, the spill to the transport is
// bounded by the flush timeout.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return 0, &Error{Kind: Closed, Op: "write"}
	}
	if c.writer.Available() < len(p) {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.flushTimeout)); err != nil {
			return 0, c.wrap("write", err)
		}
	}
	n, err := c.writer.Write(p)
	if err != nil {
		return n, c.wrap("write", err)
	}
	return n, nil
}

// Flush hands buffered bytes to the transport, giving up at the earlier
// of ctx's deadline and the flush timeout, or when ctx is cancelled.
func (c *Conn) Flush(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return &Error{Kind: Closed, Op: "flush"}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Kind: Timeout, Op: "flush", Err: err}
	}
	if c.writer.Buffered() == 0 {
		return nil
	}

	deadline := time.Now().Add(c.flushTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.wrap("flush", err)
	}
	// Cancellation forces the pending write to fail immediately.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := c.writer.Flush(); err != nil {
		return c.wrap("flush", err)
	}
	return nil
}

// Close closes the connection. Buffered bytes that were never flushed
// are discarded.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.conn.Close(); err != nil {
			c.closeErr = c.wrap("close", err)
		}
	})
	return c.closeErr
}

func (c *Conn) wrap(op string, err error) error {
	if c.closed.Load() {
		return &Error{Kind: Closed, Op: op, Err: err}
	}
	return Wrap(op, err)
}
