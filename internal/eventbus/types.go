// Package eventbus dispatches best-effort lifecycle notifications after a
// catalog mutation commits. Handlers never affect the outcome of the
// request that produced the event: errors are logged, not returned, per
// the Lifecycle Service skeleton's "emit event (best-effort)" step.
package eventbus

import "time"

// EventKind identifies the catalog operation that produced an Event.
type EventKind string

const (
	EventProjectCreated     EventKind = "project.created"
	EventProjectDeleted     EventKind = "project.deleted"
	EventWarehouseCreated   EventKind = "warehouse.created"
	EventWarehouseDeleted   EventKind = "warehouse.deleted"
	EventWarehouseActivated EventKind = "warehouse.activated"
	EventWarehouseInactive  EventKind = "warehouse.deactivated"
	EventNamespaceCreated   EventKind = "namespace.created"
	EventNamespaceDeleted   EventKind = "namespace.deleted"
	EventTableCreated       EventKind = "table.created"
	EventTableDropped       EventKind = "table.dropped"
	EventTableUndropped     EventKind = "table.undropped"
	EventTableRenamed       EventKind = "table.renamed"
	EventViewCreated        EventKind = "view.created"
	EventViewDropped        EventKind = "view.dropped"
	EventViewUndropped      EventKind = "view.undropped"
	EventViewRenamed        EventKind = "view.renamed"
	EventRoleCreated        EventKind = "role.created"
	EventRoleDeleted        EventKind = "role.deleted"
	EventRelationGranted    EventKind = "relation.granted"
	EventRelationRevoked    EventKind = "relation.revoked"
	EventUserUpserted       EventKind = "user.upserted"
	EventTaskScheduled      EventKind = "task.scheduled"
	EventTaskCancelled      EventKind = "task.cancelled"
)

// Event is a single catalog lifecycle notification.
type Event struct {
	Kind        EventKind
	ActorID     string
	ProjectID   string
	WarehouseID string
	ObjectID    string
	Parts       []string // e.g. namespace parts, for human-readable context
	OccurredAt  time.Time
	Raw         map[string]any
}

// Result aggregates handler feedback. Unlike request-path authorization,
// nothing in Result can veto a mutation that already committed.
type Result struct {
	Warnings []string
}
