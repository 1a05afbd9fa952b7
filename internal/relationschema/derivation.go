package relationschema

// derivationRule describes how a derived (action) relation resolves: as a
// disjunction over a set of direct-grant relations on the same object,
// optionally extended by re-checking the same relation on the object's
// hierarchical parent (§3.1 "derived actions ... disjunctions of direct
// grants and hierarchical inheritance"). This table is evaluated by the
// reference in-memory tuple store (relationstore.InMemoryBackend); a real
// ReBAC engine would compile it into its own rule language instead.
type derivationRule struct {
	grants  []Relation
	inherit bool
}

var derivationRules = map[Relation]derivationRule{
	RelCanCreateProject:   {grants: []Relation{RelGlobalAdmin, RelOperator}},
	RelCanListAllProjects: {grants: []Relation{RelGlobalAdmin, RelOperator}},
	RelCanCreateWarehouse: {grants: []Relation{RelProjectAdmin, RelDataAdmin}},
	RelCanCreateRole:      {grants: []Relation{RelProjectAdmin, RelRoleCreator}},
	RelCanCreateNamespace: {grants: []Relation{RelOwnership, RelCreate, RelModify}, inherit: true},
	RelCanCreateTable:     {grants: []Relation{RelOwnership, RelCreate, RelModify}, inherit: true},
	RelCanCreateView:      {grants: []Relation{RelOwnership, RelCreate, RelModify}, inherit: true},
	RelCanDelete:          {grants: []Relation{RelOwnership}},
	RelCanDrop:            {grants: []Relation{RelOwnership, RelModify}},
	RelCanRename:          {grants: []Relation{RelOwnership, RelModify}},
	RelCanUndrop:          {grants: []Relation{RelOwnership, RelModify}},
	RelCanCommit:          {grants: []Relation{RelOwnership, RelModify}},
	RelCanGetMetadata:     {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanListTables:      {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanListViews:       {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanListNamespaces:  {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanListWarehouses:  {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanIncludeInList:   {grants: []Relation{RelOwnership, RelDescribe, RelSelect, RelModify, RelCreate}, inherit: true},
	RelCanActivate:        {grants: []Relation{RelOwnership, RelStorageAdmin}},
	RelCanDeactivate:      {grants: []Relation{RelOwnership, RelStorageAdmin}},
	RelCanUpdateStorage:   {grants: []Relation{RelOwnership, RelStorageAdmin}},
	RelCanUpdate:          {grants: []Relation{RelOwnership}},
}

// DerivationRule reports how relation resolves, for any kind. Returns
// ok=false for direct-grant and hierarchical relations, which a tuple
// store resolves by direct tuple lookup rather than disjunction.
func DerivationRule(relation Relation) (grants []Relation, inheritFromParent bool, ok bool) {
	r, found := derivationRules[relation]
	if !found {
		return nil, false, false
	}
	return r.grants, r.inherit, true
}
