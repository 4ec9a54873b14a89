// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event carries session lifecycle notifications from client
// proxies to the server without blocking the proxies that raise them.
//
// An [Event] is a (Type, Target, Payload) triple. [Type] identifiers come
// from a [Registry], which binds each distinct name to exactly one
// identifier for the registry's lifetime. Components that publish a fixed
// set of event kinds keep a [Slot] per kind and call
// [Registry.RegisterOnce], so the first use allocates and every later use
// is a single atomic load.
//
// A [Target] names the component an event concerns. Targets are random
// UUIDs rather than pointers so they can be logged, compared and used as
// map keys without exposing the publisher's concrete type.
//
// [Queue] is the single dispatch path. Publishers call Post, which never
// blocks; one goroutine running [Queue.Run] delivers events to the
// handlers registered for (type, target) or (type, [AnyTarget]).
package event
