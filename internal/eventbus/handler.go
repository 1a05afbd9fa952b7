package eventbus

import "context"

// Handler processes events on the bus. Handlers are called in priority order
// (lower priority value = called earlier) for matching event kinds.
type Handler interface {
	// ID returns a unique identifier for this handler.
	ID() string

	// Handles returns the event kinds this handler processes.
	Handles() []EventKind

	// Priority determines call order. Lower values are called first.
	Priority() int

	// Handle processes a single event and may append to the aggregated
	// result. Returning an error logs a warning but does not stop the
	// handler chain and does not affect the mutation that produced the
	// event — it has already committed.
	Handle(ctx context.Context, event *Event, result *Result) error
}
