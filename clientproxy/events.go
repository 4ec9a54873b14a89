// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"github.com/bureau-foundation/deskshare/event"
	"github.com/bureau-foundation/deskshare/lib/clipstore"
	"github.com/bureau-foundation/deskshare/protocol"
)

// Event type names, as registered.
const (
	ReadyEventName            = "ClientProxy.ready"
	DisconnectedEventName     = "ClientProxy.disconnected"
	ClipboardChangedEventName = "ClientProxy.clipboardChanged"
	ClipboardGrabbedEventName = "ClientProxy.clipboardGrabbed"
	ShapeChangedEventName     = "ClientProxy.shapeChanged"
)

// Events holds the lazily registered event types shared by every proxy
// built against one registry. Create one per registry and pass it to
// each proxy; the types are registered on first use.
type Events struct {
	registry *event.Registry

	ready            event.Slot
	disconnected     event.Slot
	clipboardChanged event.Slot
	clipboardGrabbed event.Slot
	shapeChanged     event.Slot
}

// NewEvents returns the event types for registry.
func NewEvents(registry *event.Registry) *Events {
	return &Events{registry: registry}
}

// Registry returns the registry the types live in.
func (e *Events) Registry() *event.Registry {
	return e.registry
}

// Ready is published once the screen has reported its shape.
func (e *Events) Ready() event.Type {
	return e.registry.RegisterOnce(&e.ready, ReadyEventName)
}

// Disconnected is published exactly once per proxy that became Ready.
// Payload: DisconnectInfo.
func (e *Events) Disconnected() event.Type {
	return e.registry.RegisterOnce(&e.disconnected, DisconnectedEventName)
}

// ClipboardChanged is published when the screen sends clipboard
// content. Payload: ClipboardInfo.
func (e *Events) ClipboardChanged() event.Type {
	return e.registry.RegisterOnce(&e.clipboardChanged, ClipboardChangedEventName)
}

// ClipboardGrabbed is published when the screen takes ownership of a
// clipboard. Payload: ClipboardInfo without a digest.
func (e *Events) ClipboardGrabbed() event.Type {
	return e.registry.RegisterOnce(&e.clipboardGrabbed, ClipboardGrabbedEventName)
}

// ShapeChanged is published when a Ready screen reports a new shape.
// Payload: ShapeInfo.
func (e *Events) ShapeChanged() event.Type {
	return e.registry.RegisterOnce(&e.shapeChanged, ShapeChangedEventName)
}

// DisconnectInfo is the payload of a disconnected event.
type DisconnectInfo struct {
	Name string
	// Cause is nil when the disconnect was requested through
	// Disconnect or Release.
	Cause error
}

// ClipboardInfo is the payload of clipboard events.
type ClipboardInfo struct {
	Name     string
	ID       protocol.ClipboardID
	Sequence uint32
	// Digest addresses the content in the proxy's clipboard store. Zero
	// for grab events.
	Digest clipstore.Digest
}

// Shape is the geometry a screen reports in DINF.
type Shape struct {
	X, Y          int16
	Width, Height int16
	CursorX       int16
	CursorY       int16
}

// ShapeInfo is the payload of shapeChanged events.
type ShapeInfo struct {
	Name  string
	Shape Shape
}
