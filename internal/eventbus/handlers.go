package eventbus

import (
	"context"
	"log/slog"
)

// LogHandler records every lifecycle event at info level. It is the
// bus's default handler, registered by bootstrap so every deployment
// gets an audit trail even without an external sink configured.
type LogHandler struct {
	log *slog.Logger
}

// NewLogHandler returns a handler that logs every event kind.
func NewLogHandler(log *slog.Logger) *LogHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LogHandler{log: log}
}

func (h *LogHandler) ID() string       { return "log" }
func (h *LogHandler) Priority() int    { return 100 }
func (h *LogHandler) Handles() []EventKind {
	return []EventKind{
		EventProjectCreated, EventProjectDeleted,
		EventWarehouseCreated, EventWarehouseDeleted, EventWarehouseActivated, EventWarehouseInactive,
		EventNamespaceCreated, EventNamespaceDeleted,
		EventTableCreated, EventTableDropped, EventTableUndropped, EventTableRenamed,
		EventViewCreated, EventViewDropped, EventViewUndropped, EventViewRenamed,
		EventRoleCreated, EventRoleDeleted,
		EventRelationGranted, EventRelationRevoked,
		EventUserUpserted,
		EventTaskScheduled, EventTaskCancelled,
	}
}

func (h *LogHandler) Handle(ctx context.Context, event *Event, _ *Result) error {
	h.log.InfoContext(ctx, "lifecycle event",
		slog.String("kind", string(event.Kind)),
		slog.String("actor", event.ActorID),
		slog.String("object", event.ObjectID),
		slog.String("project", event.ProjectID),
		slog.String("warehouse", event.WarehouseID),
	)
	return nil
}

// DefaultHandlers returns the standard set of event bus handlers installed
// at bootstrap.
func DefaultHandlers(log *slog.Logger) []Handler {
	return []Handler{
		NewLogHandler(log),
	}
}
