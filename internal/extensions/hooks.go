package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// hookRegistration pairs a handler with the extension that registered it,
// kept for diagnostics when a handler misbehaves.
type hookRegistration struct {
	source  string
	handler Handler
}

// hookDispatcher fans a lifecycle event out to every handler subscribed to
// it. Handlers run in registration order; a handler that errors or panics
// is logged and skipped, never allowed to stop the remaining handlers or
// propagate back to whatever triggered the event.
type hookDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]hookRegistration
	logger   *slog.Logger
}

func newHookDispatcher(logger *slog.Logger) *hookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &hookDispatcher{
		handlers: make(map[EventType][]hookRegistration),
		logger:   logger.With("component", "extensions"),
	}
}

func (d *hookDispatcher) on(source string, event EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], hookRegistration{source: source, handler: handler})
}

// trigger dispatches event to every handler registered for its type.
func (d *hookDispatcher) trigger(ctx context.Context, event *Event) {
	d.mu.RLock()
	regs := append([]hookRegistration(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	for _, reg := range regs {
		if err := d.callHandler(ctx, reg, event); err != nil {
			d.logger.Warn("extension hook failed",
				"event", event.Type,
				"source", reg.source,
				"error", err)
		}
	}
}

func (d *hookDispatcher) callHandler(ctx context.Context, reg hookRegistration, event *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s handler for %s: %v", reg.source, event.Type, p)
		}
	}()
	return reg.handler(ctx, event)
}

func (d *hookDispatcher) handlerCount(event EventType) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[event])
}
