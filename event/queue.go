// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"log/slog"
	"sync"
)

// Event is one notification. Payload is nil or a type documented by the
// publisher of Type.
type Event struct {
	Type    Type
	Target  Target
	Payload any
}

// Handler receives events on the dispatch goroutine. Handlers must not
// block for long: every other event waits behind them.
type Handler func(Event)

// HandlerID identifies a registration for RemoveHandler.
type HandlerID uint64

type handlerKey struct {
	eventType Type
	target    Target
}

type registration struct {
	id      HandlerID
	handler Handler
}

// Queue buffers posted events and delivers them from a single goroutine.
// Post never blocks, so a proxy's reader can report a disconnect while
// the dispatch goroutine is busy with another proxy's events.
type Queue struct {
	registry *Registry
	logger   *slog.Logger

	mu       sync.Mutex
	pending  []Event
	handlers map[handlerKey][]registration
	nextID   HandlerID
	closed   bool

	// wake has capacity 1; a send means "pending may be non-empty".
	wake chan struct{}
}

// NewQueue returns a queue that names event types through registry when
// logging.
func NewQueue(registry *Registry, logger *slog.Logger) *Queue {
	return &Queue{
		registry: registry,
		logger:   logger,
		handlers: make(map[handlerKey][]registration),
		wake:     make(chan struct{}, 1),
	}
}

// Registry returns the registry the queue was built with.
func (q *Queue) Registry() *Registry {
	return q.registry
}

// AddHandler subscribes handler to events of eventType raised by target.
// Pass AnyTarget to receive the type from every target.
func (q *Queue) AddHandler(eventType Type, target Target, handler Handler) HandlerID {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	key := handlerKey{eventType: eventType, target: target}
	q.handlers[key] = append(q.handlers[key], registration{id: q.nextID, handler: handler})
	return q.nextID
}

// RemoveHandler drops one registration. Unknown ids are ignored.
func (q *Queue) RemoveHandler(id HandlerID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, registrations := range q.handlers {
		for i, entry := range registrations {
			if entry.id != id {
				continue
			}
			registrations = append(registrations[:i:i], registrations[i+1:]...)
			if len(registrations) == 0 {
				delete(q.handlers, key)
			} else {
				q.handlers[key] = registrations
			}
			return
		}
	}
}

// RemoveHandlers drops every registration bound to target.
func (q *Queue) RemoveHandlers(target Target) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key := range q.handlers {
		if key.target == target {
			delete(q.handlers, key)
		}
	}
}

// Post appends an event for delivery. Returns false if the queue has
// been closed, in which case the event is dropped.
func (q *Queue) Post(event Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, event)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of events waiting for delivery.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dispatch delivers every event posted so far, including events posted
// by handlers during this call, and returns how many were delivered.
// Run calls it in a loop; tests call it directly.
func (q *Queue) Dispatch() int {
	delivered := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return delivered
		}
		event := q.pending[0]
		q.pending[0] = Event{}
		q.pending = q.pending[1:]
		handlers := q.handlersFor(event)
		q.mu.Unlock()

		if len(handlers) == 0 {
			q.logger.Debug("event has no handlers",
				"type", q.registry.Name(event.Type),
				"target", event.Target.String(),
			)
		}
		for _, handler := range handlers {
			handler(event)
		}
		delivered++
	}
}

// handlersFor must be called with q.mu held. Exact-target handlers run
// before AnyTarget handlers.
func (q *Queue) handlersFor(event Event) []Handler {
	var handlers []Handler
	for _, entry := range q.handlers[handlerKey{eventType: event.Type, target: event.Target}] {
		handlers = append(handlers, entry.handler)
	}
	if !event.Target.IsZero() {
		for _, entry := range q.handlers[handlerKey{eventType: event.Type, target: AnyTarget}] {
			handlers = append(handlers, entry.handler)
		}
	}
	return handlers
}

// Run delivers events until ctx is cancelled, then closes the queue,
// delivers whatever was already pending and returns nil.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Dispatch()
		select {
		case <-q.wake:
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			q.Dispatch()
			return nil
		}
	}
}
