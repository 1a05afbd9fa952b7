package catalogstore

import "time"

// DeleteProfile names a warehouse's deletion policy (§3.2).
type DeleteProfile string

const (
	DeleteProfileHard DeleteProfile = "hard"
	DeleteProfileSoft DeleteProfile = "soft"
)

// WarehouseStatus toggles whether a warehouse serves catalog traffic (§4.5
// activate/deactivate).
type WarehouseStatus string

const (
	WarehouseActive   WarehouseStatus = "active"
	WarehouseInactive WarehouseStatus = "inactive"
)

// TabularKind distinguishes a table row from a view row; both share the
// tabular table and its uniqueness/soft-delete rules (§4.6).
type TabularKind string

const (
	TabularTable TabularKind = "table"
	TabularView  TabularKind = "view"
)

// Project is the top-level tenant boundary (§3.2).
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Warehouse is a storage-backed catalog root scoped to a project (§3.2).
type Warehouse struct {
	ID                  string
	ProjectID           string
	Name                string
	StorageProfile      string // opaque JSON document; format owned by §1's storage-profile non-goal
	StorageCredentialID string
	DeleteProfile       DeleteProfile
	SoftDeleteSeconds   int64
	Status              WarehouseStatus
	Protected           bool
	CreatedAt           time.Time
	DeletedAt           *time.Time
}

// Namespace is a warehouse- or namespace-scoped container for tabulars
// (§3.2). NameParts preserves the caller's casing; Path is the
// lowercase-joined form used for the uniqueness collation.
type Namespace struct {
	ID                string
	WarehouseID       string
	ParentNamespaceID *string
	NameParts         []string
	Path              string
	Properties        map[string]string
	Protected         bool
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// Tabular is a table or view row (§3.2). MetadataLocation is empty for a
// staged table that has not yet been committed.
type Tabular struct {
	ID               string
	WarehouseID      string
	NamespaceID      string
	Kind             TabularKind
	Name             string
	MetadataLocation string
	Protected        bool
	CreatedAt        time.Time
	DeletedAt        *time.Time
}

// Role groups grants under a project-scoped name (§3.2).
type Role struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	SourceID    *string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// User is an opaque principal identified by an external OIDC-style subject
// string (§3.2); this store only keeps display metadata.
type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
