// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Kind classifies a stream failure.
type Kind int

const (
	// ConnectionReset means the remote end went away: EOF, reset, or
	// broken pipe.
	ConnectionReset Kind = iota + 1

	// Timeout means a deadline expired before the operation finished.
	Timeout

	// Closed means the stream was closed locally before or during the
	// operation.
	Closed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case ConnectionReset:
		return "connection reset"
	case Timeout:
		return "timeout"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified stream failure. Callers test the kind with
// errors.Is against the sentinels below, or extract it with errors.As:
//
//	var streamErr *stream.Error
//	if errors.As(err, &streamErr) && streamErr.Kind == stream.Timeout { ... }
type Error struct {
	Kind Kind
	// Op is the failed operation: "read", "write", "flush" or "close".
	Op  string
	Err error
}

// Sentinels for errors.Is. They carry no operation or cause.
var (
	ErrConnectionReset = &Error{Kind: ConnectionReset}
	ErrTimeout         = &Error{Kind: Timeout}
	ErrClosed          = &Error{Kind: Closed}
)

func (e *Error) Error() string {
	switch {
	case e.Op == "":
		return "stream: " + e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("stream %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("stream %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// Wrap classifies a transport error from operation op. Errors that are
// already *Error are returned unchanged; nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var streamErr *Error
	if errors.As(err, &streamErr) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return Closed
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return ConnectionReset
}

// IsExpectedClose reports whether err is ordinary teardown: the remote
// closed cleanly, reset, hit a broken pipe, or the stream was closed
// locally. Such errors are logged at debug level rather than as
// failures.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
