package events

import (
	"context"
	"fmt"
	"sync"

	"goa.design/plankit/runtime/telemetry"
)

type (
	// Listener receives invocation events. An error returned by (or a panic
	// escaping) HandleEvent is logged and does not affect other listeners
	// or the execution that emitted the event.
	Listener interface {
		HandleEvent(ctx context.Context, event InvocationEvent) error
	}

	// ListenerFunc adapts a plain function to the Listener interface.
	ListenerFunc func(ctx context.Context, event InvocationEvent) error

	// Subscription represents an active registration on an Emitter. Close
	// unregisters the listener; it is idempotent and thread-safe.
	Subscription interface {
		Close() error
	}

	// Emitter fans out invocation events to subscribed listeners.
	// Subscribe, unsubscribe, and Emit are safe under concurrency: Emit
	// iterates a snapshot taken under a read lock, so registrations during
	// delivery do not affect the in-flight fan-out. Delivery to each
	// listener preserves event order; no ordering holds across listeners.
	Emitter struct {
		mu        sync.RWMutex
		logger    telemetry.Logger
		listeners map[*subscription]Listener
	}

	subscription struct {
		emitter *Emitter
		once    sync.Once
	}
)

// HandleEvent calls the wrapped function.
func (f ListenerFunc) HandleEvent(ctx context.Context, event InvocationEvent) error {
	return f(ctx, event)
}

// NewEmitter constructs an emitter. A nil logger falls back to the noop
// logger.
func NewEmitter(logger telemetry.Logger) *Emitter {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Emitter{
		logger:    logger,
		listeners: make(map[*subscription]Listener),
	}
}

// Subscribe registers a listener and returns its subscription handle.
func (e *Emitter) Subscribe(l Listener) (Subscription, error) {
	if l == nil {
		return nil, fmt.Errorf("events: listener is required")
	}
	s := &subscription{emitter: e}
	e.mu.Lock()
	e.listeners[s] = l
	e.mu.Unlock()
	return s, nil
}

// Emit delivers the event to every currently subscribed listener. Listener
// errors and panics are logged and swallowed: telemetry must never abort the
// execution that produced the event.
func (e *Emitter) Emit(ctx context.Context, event InvocationEvent) {
	e.mu.RLock()
	snapshot := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		snapshot = append(snapshot, l)
	}
	e.mu.RUnlock()
	for _, l := range snapshot {
		e.deliver(ctx, l, event)
	}
}

// deliver invokes one listener, containing errors and panics.
func (e *Emitter) deliver(ctx context.Context, l Listener, event InvocationEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "event listener panicked",
				"panic", fmt.Sprint(r),
				"event_type", string(event.Type),
				"invocation_id", event.InvocationID)
		}
	}()
	if err := l.HandleEvent(ctx, event); err != nil {
		e.logger.Warn(ctx, "event listener failed",
			"err", err.Error(),
			"event_type", string(event.Type),
			"invocation_id", event.InvocationID)
	}
}

// Close unregisters the listener. Safe to call multiple times.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.emitter.mu.Lock()
		delete(s.emitter.listeners, s)
		s.emitter.mu.Unlock()
	})
	return nil
}

// LoggingListener returns a listener that logs every invocation event at
// debug level through the given logger.
func LoggingListener(logger telemetry.Logger) Listener {
	return ListenerFunc(func(ctx context.Context, event InvocationEvent) error {
		logger.Debug(ctx, "invocation event",
			"kind", string(event.Kind),
			"type", string(event.Type),
			"id", event.ID,
			"invocation_id", event.InvocationID,
			"duration_ms", event.DurationMs)
		return nil
	})
}
