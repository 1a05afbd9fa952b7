package relationschema

// OpenFgaRelations returns every relation (hierarchical + direct + derived)
// the model defines for a kind.
func OpenFgaRelations(k Kind) []Relation {
	switch k {
	case KindServer:
		return []Relation{RelGlobalAdmin, RelOperator, RelCanListAllProjects, RelCanCreateProject}
	case KindProject:
		return []Relation{
			RelServer, RelProjectAdmin, RelSecurityAdmin, RelDataAdmin, RelDescribe, RelRoleCreator,
			RelCanCreateWarehouse, RelCanCreateRole, RelCanDelete, RelCanRename, RelCanGetMetadata,
			RelCanListWarehouses, RelCanIncludeInList,
		}
	case KindWarehouse:
		return []Relation{
			RelProject, RelOwnership, RelPassGrants, RelManageGrants, RelSelect, RelCreate,
			RelDescribe, RelModify, RelStorageAdmin,
			RelCanCreateNamespace, RelCanDelete, RelCanRename, RelCanGetMetadata,
			RelCanListNamespaces, RelCanActivate, RelCanDeactivate, RelCanUpdateStorage,
			RelCanIncludeInList,
		}
	case KindNamespace:
		return []Relation{
			RelParent, RelChild, RelOwnership, RelPassGrants, RelManageGrants, RelSelect,
			RelCreate, RelDescribe, RelModify,
			RelCanCreateTable, RelCanCreateView, RelCanCreateNamespace, RelCanDelete,
			RelCanRename, RelCanGetMetadata, RelCanListTables, RelCanListViews,
			RelCanListNamespaces, RelCanIncludeInList,
		}
	case KindTable, KindView, KindLakekeeperTable, KindLakekeeperView:
		return []Relation{
			RelParent, RelChild, RelOwnership, RelPassGrants, RelManageGrants, RelSelect,
			RelDescribe, RelModify,
			RelCanDrop, RelCanRename, RelCanUndrop, RelCanGetMetadata, RelCanCommit,
			RelCanIncludeInList,
		}
	case KindRole:
		return []Relation{
			RelProject, RelOwnership, RelAssignee,
			RelCanAssume, RelCanUpdate, RelCanDelete, RelCanGetMetadata, RelCanIncludeInList,
		}
	case KindUser:
		return nil
	default:
		return nil
	}
}

// APIRelations returns the subset of OpenFgaRelations that external
// callers may grant directly (direct grants only — never hierarchical or
// derived relations).
func APIRelations(k Kind) []Relation {
	switch k {
	case KindServer:
		return []Relation{RelGlobalAdmin, RelOperator}
	case KindProject:
		return []Relation{RelProjectAdmin, RelSecurityAdmin, RelDataAdmin, RelDescribe, RelRoleCreator}
	case KindWarehouse:
		return []Relation{RelOwnership, RelPassGrants, RelManageGrants, RelSelect, RelCreate, RelDescribe, RelModify, RelStorageAdmin}
	case KindNamespace:
		return []Relation{RelOwnership, RelPassGrants, RelManageGrants, RelSelect, RelCreate, RelDescribe, RelModify}
	case KindTable, KindView, KindLakekeeperTable, KindLakekeeperView:
		return []Relation{RelOwnership, RelPassGrants, RelManageGrants, RelSelect, RelDescribe, RelModify}
	case KindRole:
		return []Relation{RelOwnership, RelAssignee}
	default:
		return nil
	}
}

// UsersetSuffixes returns the suffixes a kind's relations expose as
// usersets (tuple references of the form "kind:id#relation"). Only role
// assignment is exposed this way in this model: a tuple can name
// "role:R#assignee" as the user of a grant, meaning "every user assigned
// to role R". Reproducing this set incorrectly leaks tuples after
// delete (§9 Design Notes).
func UsersetSuffixes(k Kind) []string {
	if k == KindRole {
		return []string{"assignee"}
	}
	return nil
}

// ReferencingKinds returns, for a given kind K, every object kind that may
// hold a tuple naming K (or one of K's usersets) as the `user` of one of
// its direct-grant or hierarchical relations. This is the dispatch table
// used by require_no_relations (§4.3), delete_all_relations (§4.3), and
// the Tuple Migration Engine's per-tabular user-side rewrite (§4.4 step 5).
func ReferencingKinds(k Kind) []Kind {
	switch k {
	case KindUser, KindRole:
		// Users (bare, or via a role's #assignee userset) and roles
		// (bare ownership grants) may be granted access anywhere a
		// direct grant exists.
		return []Kind{KindServer, KindProject, KindWarehouse, KindNamespace, KindTable, KindView, KindLakekeeperTable, KindLakekeeperView, KindRole}
	case KindProject:
		// warehouse.parent names project as user (hierarchical parent
		// edge); server.child names it as user (the inverse edge).
		return []Kind{KindWarehouse, KindServer}
	case KindWarehouse:
		// namespace.parent names warehouse as user when the namespace's
		// parent is the warehouse itself (top-level namespace);
		// project.child names it as user (the inverse edge).
		return []Kind{KindNamespace, KindProject}
	case KindNamespace:
		// namespace.parent (nested namespace) and table/view.parent name
		// namespace as user; warehouse.child or namespace.child (the
		// inverse edge) names it as user too.
		return []Kind{KindNamespace, KindTable, KindView, KindLakekeeperTable, KindLakekeeperView, KindWarehouse}
	case KindTable, KindView, KindLakekeeperTable, KindLakekeeperView:
		// namespace.child names the tabular as user (inverse of the
		// tabular's own "parent" relation).
		return []Kind{KindNamespace}
	case KindServer:
		// project.server names server as user (hierarchical parent edge).
		return []Kind{KindProject}
	default:
		return nil
	}
}
