// Package relationschema enumerates the authorization model of spec.md
// §3.1/§4.2: object kinds, their relations, the userset suffixes each
// kind's users may carry, and the fixed Action→relation and
// APIRelation→grant-action mappings. These tables are the contract a
// deployed authorization model expects; they are reproduced verbatim
// rather than derived, per §4.2.
package relationschema

// Kind names an object type in the tuple store.
type Kind string

const (
	KindServer       Kind = "server"
	KindProject      Kind = "project"
	KindWarehouse    Kind = "warehouse"
	KindNamespace    Kind = "namespace"
	KindTable        Kind = "table"
	KindView         Kind = "view"
	KindRole         Kind = "role"
	KindUser         Kind = "user"
	KindModelVersion Kind = "modelversion"
	KindAuthModelID  Kind = "authmodelid"

	// Post-v4 tabular kinds. The bare table/view kinds above remain valid
	// for read against pre-v4 tuples (§6 wire compatibility).
	KindLakekeeperTable Kind = "lakekeeper_table"
	KindLakekeeperView  Kind = "lakekeeper_view"
)

// TabularKinds returns the v4 object kinds tabular creation writes.
func TabularKinds() []Kind {
	return []Kind{KindLakekeeperTable, KindLakekeeperView}
}

// AllKinds returns every object kind the authorization model defines.
func AllKinds() []Kind {
	return []Kind{
		KindServer, KindProject, KindWarehouse, KindNamespace,
		KindTable, KindView, KindRole, KindUser,
		KindModelVersion, KindAuthModelID,
		KindLakekeeperTable, KindLakekeeperView,
	}
}

// Relation names one edge, grant, or derived action in the model.
type Relation string

// Hierarchical relations (bidirectional parent/child pairs, §3.1).
const (
	RelParent Relation = "parent"  // object (child) -> user (parent)
	RelChild  Relation = "child"   // object (parent) -> user (child), inverse of RelParent
	RelServer Relation = "server"  // project -> server
	RelProject Relation = "project" // warehouse -> project
)

// Direct grant relations, writable via the grant APIs (§3.1, §4.2 APIRelation).
const (
	RelOwnership     Relation = "ownership"
	RelProjectAdmin  Relation = "project_admin"
	RelSecurityAdmin Relation = "security_admin"
	RelDataAdmin     Relation = "data_admin"
	RelDescribe      Relation = "describe"
	RelSelect        Relation = "select"
	RelCreate        Relation = "create"
	RelModify        Relation = "modify"
	RelManageGrants  Relation = "manage_grants"
	RelPassGrants    Relation = "pass_grants"
	RelStorageAdmin  Relation = "storage_admin"
	RelAssignee      Relation = "assignee"    // role's userset-bearing relation
	RelGlobalAdmin   Relation = "admin"       // server
	RelOperator      Relation = "operator"    // server
	RelRoleCreator   Relation = "role_creator" // project's grantable "may create roles" relation
)

// Derived (action) relations: not writable, evaluated by the model as a
// disjunction of the relations above plus hierarchical inheritance.
const (
	RelCanCreateProject   Relation = "can_create_project"
	RelCanListAllProjects Relation = "can_list_all_projects"
	RelCanCreateWarehouse Relation = "can_create_warehouse"
	RelCanCreateRole      Relation = "can_create_role"
	RelCanCreateNamespace Relation = "can_create_namespace"
	RelCanCreateTable     Relation = "can_create_table"
	RelCanCreateView      Relation = "can_create_view"
	RelCanDelete          Relation = "can_delete"
	RelCanDrop            Relation = "can_drop"
	RelCanRename          Relation = "can_rename"
	RelCanUndrop          Relation = "can_undrop"
	RelCanGetMetadata     Relation = "can_get_metadata"
	RelCanCommit          Relation = "can_commit"
	RelCanListTables      Relation = "can_list_tables"
	RelCanListViews       Relation = "can_list_views"
	RelCanListNamespaces  Relation = "can_list_namespaces"
	RelCanListWarehouses  Relation = "can_list_warehouses"
	RelCanIncludeInList   Relation = "can_include_in_list"
	RelCanActivate        Relation = "can_activate"
	RelCanDeactivate      Relation = "can_deactivate"
	RelCanUpdateStorage   Relation = "can_update_storage"
	RelCanAssume          Relation = "can_assume"
	RelCanUpdate          Relation = "can_update"
	RelCanGrant           Relation = "can_grant"
)
