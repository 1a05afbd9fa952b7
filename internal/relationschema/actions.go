package relationschema

// Action is a caller-intent label. Each Action maps to exactly one
// relation to check (ToOpenFGA). §9 Design Notes: Action is a tagged
// union over object kind (Project, Warehouse, Namespace, Table, View,
// Role, Server, User); the mapping to relations is a plain function from
// that union to a string — never a trait hierarchy whose virtual dispatch
// crosses the tuple-store boundary.
type Action struct {
	Kind     Kind
	Name     string
	relation Relation
}

// ToOpenFGA returns the single relation this action checks.
func (a Action) ToOpenFGA() Relation { return a.relation }

func act(k Kind, name string, rel Relation) Action { return Action{Kind: k, Name: name, relation: rel} }

// Server actions.
var (
	ServerCanListAllProjects = act(KindServer, "CanListAllProjects", RelCanListAllProjects)
	ServerCreateProject      = act(KindServer, "CreateProject", RelCanCreateProject)
	ServerGrantAdmin         = act(KindServer, "GrantAdmin", RelGlobalAdmin)
)

// Project actions (APIAction unless noted).
var (
	ProjectCreateWarehouse = act(KindProject, "CreateWarehouse", RelCanCreateWarehouse)
	ProjectDelete          = act(KindProject, "Delete", RelCanDelete)
	ProjectRename          = act(KindProject, "Rename", RelCanRename)
	ProjectGetMetadata     = act(KindProject, "GetMetadata", RelCanGetMetadata)
	ProjectListWarehouses  = act(KindProject, "ListWarehouses", RelCanListWarehouses)
	// ProjectCreateRole is distinct from ProjectCreateWarehouse: the original
	// model (_examples/original_source/crates/authz-openfga/src/relations.rs)
	// defines a separate ProjectRelation::CanCreateRole, derived from its own
	// RoleCreator grant rather than can_create_warehouse, so that granting
	// "may create warehouses" never implies "may create roles" or vice versa.
	ProjectCreateRole = act(KindProject, "CreateRole", RelCanCreateRole)
	// ProjectIncludeInList is an InternalAction: used by list_projects (§4.3)
	// to mask the full project set down to what actor may see.
	ProjectIncludeInList = act(KindProject, "IncludeInList", RelCanIncludeInList)
)

// Warehouse actions.
var (
	WarehouseCreateNamespace = act(KindWarehouse, "CreateNamespace", RelCanCreateNamespace)
	WarehouseDelete          = act(KindWarehouse, "Delete", RelCanDelete)
	WarehouseRename          = act(KindWarehouse, "Rename", RelCanRename)
	WarehouseGetMetadata     = act(KindWarehouse, "GetMetadata", RelCanGetMetadata)
	WarehouseListNamespaces  = act(KindWarehouse, "ListNamespaces", RelCanListNamespaces)
	WarehouseActivate        = act(KindWarehouse, "Activate", RelCanActivate)
	WarehouseDeactivate      = act(KindWarehouse, "Deactivate", RelCanDeactivate)
	WarehouseUpdateStorage   = act(KindWarehouse, "UpdateStorage", RelCanUpdateStorage)
	WarehouseIncludeInList   = act(KindWarehouse, "IncludeInList", RelCanIncludeInList)
)

// Namespace actions.
var (
	NamespaceCreateTable     = act(KindNamespace, "CreateTable", RelCanCreateTable)
	NamespaceCreateView      = act(KindNamespace, "CreateView", RelCanCreateView)
	NamespaceCreateNamespace = act(KindNamespace, "CreateNamespace", RelCanCreateNamespace)
	NamespaceDelete          = act(KindNamespace, "Delete", RelCanDelete)
	NamespaceRename          = act(KindNamespace, "Rename", RelCanRename)
	NamespaceGetMetadata     = act(KindNamespace, "GetMetadata", RelCanGetMetadata)
	NamespaceListTables      = act(KindNamespace, "ListTables", RelCanListTables)
	NamespaceListViews       = act(KindNamespace, "ListViews", RelCanListViews)
	NamespaceListNamespaces  = act(KindNamespace, "ListNamespaces", RelCanListNamespaces)
	NamespaceIncludeInList   = act(KindNamespace, "IncludeInList", RelCanIncludeInList)
)

// Tabular (table/view) actions — CatalogAction names mirror the Iceberg
// REST catalog surface (GetMetadata, Commit); APIAction names mirror the
// management API (Drop, Rename, Undrop).
var (
	TabularDrop        = act(KindTable, "Drop", RelCanDrop)
	TabularRename       = act(KindTable, "Rename", RelCanRename)
	TabularUndrop       = act(KindTable, "Undrop", RelCanUndrop)
	TabularGetMetadata  = act(KindTable, "GetMetadata", RelCanGetMetadata)
	TabularCommit       = act(KindTable, "Commit", RelCanCommit)
	TabularIncludeInList = act(KindTable, "IncludeInList", RelCanIncludeInList)
)

// Role actions.
var (
	RoleCanAssume      = act(KindRole, "CanAssume", RelCanAssume)
	RoleUpdate         = act(KindRole, "Update", RelCanUpdate)
	RoleDelete         = act(KindRole, "Delete", RelCanDelete)
	RoleGetMetadata    = act(KindRole, "GetMetadata", RelCanGetMetadata)
	RoleIncludeInList  = act(KindRole, "IncludeInList", RelCanIncludeInList)
	// RoleReadAssignments is an InternalAction: used by the authorizer to
	// decide whether the caller may enumerate a role's assignees.
	RoleReadAssignments = act(KindRole, "ReadAssignments", RelManageGrants)
)

// grantRelationTable maps each grantable APIRelation to the Action that
// authorises granting it (§4.2 grant_relation mapping). Not every
// relation in APIRelations needs a distinct entry here when the object's
// manage_grants/ownership action already governs all grants on that kind
// uniformly (the common case); entries are only listed where a relation
// has a distinct authorizing action.
type grantKey struct {
	Kind     Kind
	Relation Relation
}

var grantRelationTable = map[grantKey]Action{
	{KindWarehouse, RelOwnership}: {Kind: KindWarehouse, Name: "GrantOwnership", relation: RelManageGrants},
	{KindNamespace, RelOwnership}: {Kind: KindNamespace, Name: "GrantOwnership", relation: RelManageGrants},
	{KindTable, RelOwnership}:     {Kind: KindTable, Name: "GrantOwnership", relation: RelManageGrants},
	{KindView, RelOwnership}:      {Kind: KindView, Name: "GrantOwnership", relation: RelManageGrants},
	{KindRole, RelAssignee}:       {Kind: KindRole, Name: "GrantAssignee", relation: RelManageGrants},
	// Project has no manage_grants relation of its own (OpenFgaRelations
	// KindProject), so every project-level direct grant is authorized by
	// project_admin explicitly rather than the manage_grants default.
	{KindProject, RelProjectAdmin}:  {Kind: KindProject, Name: "GrantProjectAdmin", relation: RelProjectAdmin},
	{KindProject, RelSecurityAdmin}: {Kind: KindProject, Name: "GrantSecurityAdmin", relation: RelProjectAdmin},
	{KindProject, RelDataAdmin}:     {Kind: KindProject, Name: "GrantDataAdmin", relation: RelProjectAdmin},
	{KindProject, RelDescribe}:      {Kind: KindProject, Name: "GrantDescribe", relation: RelProjectAdmin},
	{KindProject, RelRoleCreator}:   {Kind: KindProject, Name: "GrantRoleCreator", relation: RelProjectAdmin},
}

// GrantAction returns the action that authorizes granting relation rel on
// kind k. The default, for any grantable relation without a specific
// override above, is the kind's manage_grants relation.
func GrantAction(k Kind, rel Relation) Action {
	if a, ok := grantRelationTable[grantKey{k, rel}]; ok {
		return a
	}
	return act(k, "Grant"+string(rel), RelManageGrants)
}
