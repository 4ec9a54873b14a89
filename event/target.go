// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "github.com/google/uuid"

// Target is the opaque identity events are routed by. Each client proxy
// draws a fresh Target at construction; a reconnecting screen gets a new
// one.
type Target uuid.UUID

// AnyTarget subscribes a handler to an event type regardless of which
// target raised it. It is never assigned to a publisher.
var AnyTarget Target

// NewTarget returns a new random Target.
func NewTarget() Target {
	return Target(uuid.New())
}

// ParseTarget parses the canonical string form produced by String.
func ParseTarget(text string) (Target, error) {
	id, err := uuid.Parse(text)
	if err != nil {
		return Target{}, err
	}
	return Target(id), nil
}

// String returns the canonical UUID text.
func (t Target) String() string {
	return uuid.UUID(t).String()
}

// IsZero reports whether t is AnyTarget.
func (t Target) IsZero() bool {
	return t == AnyTarget
}

// MarshalText implements encoding.TextMarshaler so targets serialize as
// strings in logs and on the admin socket.
func (t Target) MarshalText() ([]byte, error) {
	return uuid.UUID(t).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(t).UnmarshalText(data)
}
