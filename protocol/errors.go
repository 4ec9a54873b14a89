// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// ErrorKind classifies a protocol failure.
type ErrorKind int

const (
	// MalformedMessage means the bytes do not match the expected layout:
	// a literal differs, trailing bytes remain, or a value is out of
	// range.
	MalformedMessage ErrorKind = iota + 1

	// UnexpectedEOF means the packet ended inside a field.
	UnexpectedEOF

	// UnknownMessageCode means the message code is not part of the
	// vocabulary accepted in the current state.
	UnknownMessageCode

	// VersionMismatch means the peer speaks a protocol version this
	// server does not implement.
	VersionMismatch
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case MalformedMessage:
		return "malformed message"
	case UnexpectedEOF:
		return "unexpected end of message"
	case UnknownMessageCode:
		return "unknown message code"
	case VersionMismatch:
		return "version mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a protocol failure. Test the kind with errors.Is against the
// sentinels below.
type Error struct {
	Kind ErrorKind
	// Code is the four-letter message code involved, when known.
	Code   string
	Detail string
	Err    error
}

// Sentinels for errors.Is.
var (
	ErrMalformedMessage   = &Error{Kind: MalformedMessage}
	ErrUnexpectedEOF      = &Error{Kind: UnexpectedEOF}
	ErrUnknownMessageCode = &Error{Kind: UnknownMessageCode}
	ErrVersionMismatch    = &Error{Kind: VersionMismatch}
)

func (e *Error) Error() string {
	text := "protocol: " + e.Kind.String()
	if e.Code != "" {
		text += fmt.Sprintf(" %q", e.Code)
	}
	if e.Detail != "" {
		text += ": " + e.Detail
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: MalformedMessage, Detail: fmt.Sprintf(format, args...)}
}

func truncated(format string, args ...any) *Error {
	return &Error{Kind: UnexpectedEOF, Detail: fmt.Sprintf(format, args...)}
}
