package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Bus dispatches lifecycle events to registered handlers in-process.
// It is the collaborator the Lifecycle Service calls into for the
// "emit event" step of the per-verb skeleton: dispatch is synchronous
// and best-effort, handler errors are logged and otherwise swallowed.
type Bus struct {
	handlers []Handler
	log      *slog.Logger
	mu       sync.RWMutex
}

// New creates a new event bus. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Register adds a handler to the bus. Handlers are sorted by priority on
// each Dispatch call, so registration order does not matter.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Unregister removes a handler by ID. Returns true if a handler was removed.
func (b *Bus) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.ID() == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Handlers returns all registered handlers (for introspection/status reporting).
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// Dispatch sends an event to all registered handlers that handle its kind.
// Handlers are called sequentially in priority order (lowest first).
// Handler errors are logged but do not stop the chain and are never
// returned to the caller: by the time Dispatch runs, the mutation that
// produced the event has already committed.
func (b *Bus) Dispatch(ctx context.Context, event *Event) *Result {
	if event == nil {
		return &Result{}
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Kind)
	b.mu.RUnlock()

	result := &Result{}
	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			b.log.WarnContext(ctx, "eventbus: dispatch aborted", slog.String("kind", string(event.Kind)), slog.Any("err", err))
			return result
		}
		if err := h.Handle(ctx, event, result); err != nil {
			b.log.WarnContext(ctx, "eventbus: handler error",
				slog.String("handler", h.ID()),
				slog.String("kind", string(event.Kind)),
				slog.Any("err", fmt.Errorf("%s: %w", h.ID(), err)))
		}
	}
	return result
}

// matchingHandlers returns handlers that handle the given event kind, sorted
// by priority (lowest first). Must be called with at least a read lock held.
func (b *Bus) matchingHandlers(kind EventKind) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, k := range h.Handles() {
			if k == kind {
				matched = append(matched, h)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Priority() < matched[j].Priority()
	})
	return matched
}
