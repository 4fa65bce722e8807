package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/events"

	"go.uber.org/zap"
)

// handlerTimeout bounds a single handler invocation so one slow
// subscriber cannot stall the publishing saga step.
const handlerTimeout = 30 * time.Second

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Bus is an in-process event bus. Publishing is synchronous: handlers
// run in subscription order on the caller's goroutine, and Publish only
// fails when every handler for the event failed. Individual handler
// errors are logged and do not stop the remaining handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewBus creates an empty event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type. The Wildcard type
// receives every published event.
func (b *Bus) Subscribe(eventType string, handler ports.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if eventType != Wildcard && !handler.CanHandle(eventType) {
		return fmt.Errorf("handler does not accept event type %s", eventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Info("Subscribed event handler",
		zap.String("eventType", eventType),
		zap.Int("handlers", len(b.handlers[eventType])),
	)
	return nil
}

// Unsubscribe removes a handler from an event type
func (b *Bus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.handlers[eventType]
	filtered := existing[:0:0]
	for _, h := range existing {
		if h != handler {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == len(existing) {
		return fmt.Errorf("handler not subscribed to %s", eventType)
	}
	if len(filtered) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = filtered
	}
	return nil
}

// Publish dispatches an event to its subscribers and the wildcard
// subscribers
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	eventType := event.GetEventType()

	b.mu.RLock()
	targets := make([]ports.EventHandler, 0, len(b.handlers[eventType])+len(b.handlers[Wildcard]))
	targets = append(targets, b.handlers[eventType]...)
	targets = append(targets, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.logger.Debug("No handlers for event", zap.String("eventType", eventType))
		return nil
	}

	var lastErr error
	failures := 0
	for _, handler := range targets {
		handlerCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		err := handler.Handle(handlerCtx, event)
		cancel()
		if err != nil {
			failures++
			lastErr = err
			b.logger.Error("Event handler failed",
				zap.String("eventType", eventType),
				zap.String("aggregateId", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}

	if failures == len(targets) {
		return fmt.Errorf("all handlers failed for event %s: %w", eventType, lastErr)
	}
	return nil
}

// PublishBatch dispatches a slice of events in order
func (b *Bus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	var lastErr error
	failures := 0
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			failures++
			lastErr = err
		}
	}
	if failures > 0 {
		b.logger.Warn("Batch publish completed with errors",
			zap.Int("total", len(batch)),
			zap.Int("failed", failures),
		)
		return fmt.Errorf("batch publish had %d failures: %w", failures, lastErr)
	}
	return nil
}

// HandlerFunc adapts a function to the EventHandler port. An empty
// types list accepts every event.
type HandlerFunc struct {
	fn    func(ctx context.Context, event events.DomainEvent) error
	types map[string]struct{}
}

// NewHandlerFunc wraps fn as an event handler limited to the given types
func NewHandlerFunc(fn func(ctx context.Context, event events.DomainEvent) error, types ...string) *HandlerFunc {
	accepted := make(map[string]struct{}, len(types))
	for _, t := range types {
		accepted[t] = struct{}{}
	}
	return &HandlerFunc{fn: fn, types: accepted}
}

// Handle invokes the wrapped function
func (h *HandlerFunc) Handle(ctx context.Context, event events.DomainEvent) error {
	return h.fn(ctx, event)
}

// CanHandle reports whether the handler accepts the event type
func (h *HandlerFunc) CanHandle(eventType string) bool {
	if len(h.types) == 0 {
		return true
	}
	_, ok := h.types[eventType]
	return ok
}
