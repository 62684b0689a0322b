package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a published event.
type Handler func(ctx context.Context, event Event) error

// Subscription identifies a registered handler so it can be removed later.
type Subscription struct {
	eventType Type
	id        uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus dispatches events synchronously to the handlers registered for their type.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Type][]registration
	logger   *zap.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[Type][]registration), logger: logger}
}

// Subscribe registers handler for eventType. Handlers run in registration order.
func (b *Bus) Subscribe(eventType Type, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: b.nextID, handler: handler})
	return Subscription{eventType: eventType, id: b.nextID}
}

// SubscribeAll registers handler for every known event type.
func (b *Bus) SubscribeAll(handler Handler) []Subscription {
	subs := make([]Subscription, 0, len(AllTypes))
	for _, t := range AllTypes {
		subs = append(subs, b.Subscribe(t, handler))
	}
	return subs
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[sub.eventType]
	for i, reg := range regs {
		if reg.id != sub.id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, sub.eventType)
		} else {
			b.handlers[sub.eventType] = next
		}
		return
	}
}

// HandlerCount returns the number of handlers registered for eventType.
func (b *Bus) HandlerCount(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish delivers event to the handlers registered when the call starts. A failing
// or panicking handler does not prevent the remaining ones from running; their
// errors are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}
	b.mu.RLock()
	regs := b.handlers[event.Type()]
	b.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if err := b.invoke(ctx, reg.handler, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event", string(event.Type())),
				zap.String("key", event.Key()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Type(), r)
		}
	}()
	return handler(ctx, event)
}
