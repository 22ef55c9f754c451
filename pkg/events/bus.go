package events

import (
	"context"
	"reflect"
	"sync"

	"github.com/riskguard/analyzer/pkg/observability"
)

func reflectAddr(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// InMemoryBus is the default Bus implementation: in-process fan-out with one
// goroutine per handler invocation. It does not persist events; a session's
// SSE subscriber and its thread snapshot both observe the same stream but
// independently, so a slow or absent subscriber never blocks the emitter.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   observability.Logger
}

// NewInMemoryBus creates an empty bus. logger may be nil, in which case a
// no-op logger is used.
func NewInMemoryBus(logger observability.Logger) *InMemoryBus {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &InMemoryBus{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
	}
}

// Publish fans the event out to every handler subscribed to its type. Each
// handler runs in its own goroutine so a blocked subscriber cannot stall the
// state machine thread that owns the session.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(handler Handler) {
			if err := handler(ctx, event); err != nil {
				b.logger.Warn("event handler failed", map[string]interface{}{
					"event_type": string(event.Type),
					"session_id": event.SessionID,
					"error":      err.Error(),
				})
			}
		}(h)
	}
}

// Subscribe registers handler for eventType. Order of delivery across
// distinct handlers is not guaranteed.
func (b *InMemoryBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Unsubscribe is a no-op if handler was never registered for eventType.
// Handlers are compared by pointer identity of the underlying function
// value's location, so callers that need to unsubscribe must keep the
// original Handler value around.
func (b *InMemoryBus) Unsubscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.handlers[eventType]
	filtered := make([]Handler, 0, len(existing))
	target := reflectAddr(handler)
	for _, h := range existing {
		if reflectAddr(h) != target {
			filtered = append(filtered, h)
		}
	}
	b.handlers[eventType] = filtered
}

// Close clears all subscriptions. In-flight Publish goroutines are not
// cancelled.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
