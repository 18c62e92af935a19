// Package events provides the in-process publish/subscribe bus used to fan out
// domain events (applicant status changes) to side-effect subscribers such as
// mail dispatch, metrics and cache invalidation.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is anything that can be published on the bus.
type Event interface {
	EventName() string
}

// Handler consumes an event. Returned errors are logged by the bus and never
// reach the publisher.
type Handler func(ctx context.Context, event Event) error

// ErrBusClosed is returned when publishing or subscribing after Close.
var ErrBusClosed = errors.New("event bus closed")

// Bus dispatches events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	all      []namedHandler
	logger   *zap.Logger
	closed   bool
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewBus builds an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[string][]namedHandler), logger: logger}
}

// Subscribe registers fn for events named eventName. name identifies the
// subscriber in logs.
func (b *Bus) Subscribe(eventName, name string, fn Handler) error {
	if fn == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.handlers[eventName] = append(b.handlers[eventName], namedHandler{name: name, fn: fn})
	return nil
}

// SubscribeAll registers fn for every event.
func (b *Bus) SubscribeAll(name string, fn Handler) error {
	if fn == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.all = append(b.all, namedHandler{name: name, fn: fn})
	return nil
}

// Publish delivers event to every matching subscriber and returns the number of
// subscribers that failed.
func (b *Bus) Publish(ctx context.Context, event Event) (int, error) {
	if event == nil {
		return 0, errors.New("event cannot be nil")
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, ErrBusClosed
	}
	targets := make([]namedHandler, 0, len(b.handlers[event.EventName()])+len(b.all))
	targets = append(targets, b.handlers[event.EventName()]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	failed := 0
	for _, h := range targets {
		start := time.Now()
		if err := b.invoke(ctx, h, event); err != nil {
			failed++
			b.logger.Warn("event subscriber failed",
				zap.String("event", event.EventName()),
				zap.String("subscriber", h.name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}
	return failed, nil
}

func (b *Bus) invoke(ctx context.Context, h namedHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return h.fn(ctx, event)
}

// Close rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
