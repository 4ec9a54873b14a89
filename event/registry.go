// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Type identifies a kind of event. The zero value is never allocated
// and means "not yet registered".
type Type uint32

// Unknown is the unregistered Type.
const Unknown Type = 0

// Slot caches the Type registered for one name at one call site. The
// zero Slot is empty. A Slot must only ever be used with one Registry.
type Slot struct {
	value atomic.Uint32
}

// Registry binds event names to Types. Registration is idempotent: a
// name registered twice, from any number of goroutines, yields the same
// Type. Types are never released.
type Registry struct {
	mu     sync.Mutex
	byName map[string]Type
	names  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Type),
		// Index 0 is Unknown.
		names: []string{""},
	}
}

// Register returns the Type bound to name, allocating one if this is
// the first request for the name.
func (r *Registry) Register(name string) Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		return existing
	}
	eventType := Type(len(r.names))
	r.names = append(r.names, name)
	r.byName[name] = eventType
	return eventType
}

// RegisterOnce returns the Type stored in slot, registering name and
// filling the slot first if it is empty. Concurrent callers racing on
// the same empty slot all observe the same Type.
func (r *Registry) RegisterOnce(slot *Slot, name string) Type {
	if value := slot.value.Load(); value != 0 {
		return Type(value)
	}
	eventType := r.Register(name)
	// Losing the race is harmless: Register returned the winner's Type.
	slot.value.CompareAndSwap(0, uint32(eventType))
	return Type(slot.value.Load())
}

// Lookup returns the Type registered for name without allocating.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eventType, ok := r.byName[name]
	return eventType, ok
}

// Name returns the name bound to eventType, or a placeholder for types
// this registry never allocated.
func (r *Registry) Name(eventType Type) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if eventType == Unknown || int(eventType) >= len(r.names) {
		return fmt.Sprintf("unknown(%d)", eventType)
	}
	return r.names[eventType]
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
