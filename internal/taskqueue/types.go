// Package taskqueue is the Task Queue (TQ, spec.md §4.7): a durable queue
// with scheduled-for timestamps, attempts, heartbeats, a final-status log,
// and filtered listing/cancellation. It shares its database file with the
// Catalog Store (the "task" and "task_log" tables are owned by the
// catalogstore migrations, §4.6 expansion) so a Lifecycle Service verb can
// schedule a task in the same write transaction as its entity mutation.
package taskqueue

import "time"

// Status is a task's current lifecycle state (§4.7 state diagram).
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
)

// FinalStatus is the terminal outcome recorded in task_log.
type FinalStatus string

const (
	FinalSuccess   FinalStatus = "success"
	FinalFailed    FinalStatus = "failed"
	FinalCancelled FinalStatus = "cancelled"
	FinalStopped   FinalStatus = "stopped"
)

// EntityKind names what a task's EntityRef points at (§6 "Task entity
// reference format"): a bare project, a warehouse itself, or a tabular
// scoped to a warehouse.
type EntityKind string

const (
	EntityProject   EntityKind = "project"
	EntityWarehouse EntityKind = "warehouse"
	EntityTable     EntityKind = "table"
	EntityView      EntityKind = "view"
)

// EntityRef is a task's entity reference: Project, or
// EntityInWarehouse{warehouse_id, entity_id, entity_name_parts} where
// entity_id is Table{uuid}, View{uuid}, or Warehouse (§6). NameParts is
// kept even after the referenced entity is gone, so task listings retain
// human-readable context (§6).
type EntityRef struct {
	Kind        EntityKind
	ProjectID   string
	WarehouseID string // empty for EntityProject
	ObjectID    string // empty for EntityWarehouse, where WarehouseID names the object
	NameParts   []string
}

// ProjectEntity builds a Project-kind reference.
func ProjectEntity(projectID string, name string) EntityRef {
	return EntityRef{Kind: EntityProject, ProjectID: projectID, NameParts: []string{name}}
}

// WarehouseEntity builds an EntityInWarehouse{Warehouse} reference.
func WarehouseEntity(projectID, warehouseID, name string) EntityRef {
	return EntityRef{Kind: EntityWarehouse, ProjectID: projectID, WarehouseID: warehouseID, NameParts: []string{name}}
}

// TabularEntity builds an EntityInWarehouse{Table|View} reference.
func TabularEntity(kind EntityKind, projectID, warehouseID, tabularID string, nameParts []string) EntityRef {
	return EntityRef{Kind: kind, ProjectID: projectID, WarehouseID: warehouseID, ObjectID: tabularID, NameParts: nameParts}
}

// Task is an in-flight (scheduled/running/stopping) queue row (§3.2, §4.7).
type Task struct {
	ID              string
	QueueName       string
	Status          Status
	Attempt         int
	MaxAttempts     int
	Payload         string // opaque JSON document, queue-specific
	ScheduledFor    time.Time
	PickedUpAt      *time.Time
	LastHeartbeatAt *time.Time
	Progress        string
	ParentTaskID    *string
	Entity          EntityRef
	CreatedAt       time.Time
}

// LogEntry is a terminal-history row in task_log (§4.7).
type LogEntry struct {
	ID           string
	TaskID       string
	QueueName    string
	Attempt      int
	FinalStatus  FinalStatus
	ErrorMessage string
	Entity       EntityRef
	CreatedAt    time.Time
	FinishedAt   time.Time
}
