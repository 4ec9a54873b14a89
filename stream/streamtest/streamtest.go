// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package streamtest provides an in-memory stream.Stream that records
// every operation, for proxy and server tests.
package streamtest

import (
	"bytes"
	"context"
	"sync"

	"github.com/bureau-foundation/deskshare/stream"
)

// Compile-time interface check.
var _ stream.Stream = (*Stream)(nil)

// Stream is a scripted stream. Inbound bytes are supplied with Feed and
// handed to Read in order; outbound writes accumulate in Written. Read
// blocks until data, an injected error, EndOfInput or Close.
type Stream struct {
	mu      sync.Mutex
	changed *sync.Cond

	inbound    bytes.Buffer
	readErr    error
	endOfInput bool

	written    bytes.Buffer
	unflushed  int
	operations []string
	reads      int
	flushes    int

	writeErr error
	flushErr error
	closed   bool
}

// New returns an empty open stream.
func New() *Stream {
	s := &Stream{}
	s.changed = sync.NewCond(&s.mu)
	return s
}

// Feed appends bytes for Read to return.
func (s *Stream) Feed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound.Write(data)
	s.changed.Broadcast()
}

// FailRead makes Read return err once the already fed bytes have been
// consumed. Plain errors are classified through stream.Wrap.
func (s *Stream) FailRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = stream.Wrap("read", err)
	s.changed.Broadcast()
}

// EndOfInput makes Read report a remote close once fed bytes run out.
func (s *Stream) EndOfInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endOfInput = true
	s.changed.Broadcast()
}

// SetWriteError makes every later Write fail with err (nil restores).
func (s *Stream) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// SetFlushError makes every later Flush fail with err (nil restores).
func (s *Stream) SetFlushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErr = err
}

// Read implements stream.Stream.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for {
		switch {
		case s.closed:
			return 0, &stream.Error{Kind: stream.Closed, Op: "read"}
		case s.inbound.Len() > 0:
			return s.inbound.Read(p)
		case s.readErr != nil:
			return 0, s.readErr
		case s.endOfInput:
			return 0, stream.ErrConnectionReset
		}
		s.changed.Wait()
	}
}

// Write implements stream.Stream.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations = append(s.operations, "write")
	if s.closed {
		return 0, &stream.Error{Kind: stream.Closed, Op: "write"}
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.written.Write(p)
	s.unflushed += len(p)
	return len(p), nil
}

// Flush implements stream.Stream.
func (s *Stream) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations = append(s.operations, "flush")
	s.flushes++
	if s.closed {
		return &stream.Error{Kind: stream.Closed, Op: "flush"}
	}
	if s.flushErr != nil {
		return s.flushErr
	}
	if err := ctx.Err(); err != nil {
		return stream.Wrap("flush", err)
	}
	s.unflushed = 0
	return nil
}

// Close implements stream.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.operations = append(s.operations, "close")
	}
	s.closed = true
	s.changed.Broadcast()
	return nil
}

// Written returns a copy of every byte successfully written.
func (s *Stream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.written.Bytes())
}

// Unflushed returns how many written bytes no Flush has covered yet.
func (s *Stream) Unflushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unflushed
}

// Operations returns the sequence of write/flush/close calls.
func (s *Stream) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.operations...)
}

// Flushes returns the number of Flush calls.
func (s *Stream) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Reads returns the number of Read calls.
func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
