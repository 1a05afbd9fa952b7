// Package authz is the Authorizer (AZ, spec.md §4.3): it consumes the
// Relation Store Client and Relation Schema to expose one
// is_allowed_X_action per object kind, the create_X/delete_X graph
// mutations, and the require_no_relations/delete_all_relations/
// list_objects helpers.
package authz

// Actor is the subject on whose behalf a request is made (GLOSSARY).
type Actor struct {
	// Kind distinguishes Anonymous, Principal, and Role actors.
	Kind ActorKind
	// UserID is set for Principal and for the Role actor's principal.
	UserID string
	// AssumedRole is set only for Role actors: the role:id the principal
	// claims to be acting as.
	AssumedRole string
}

// ActorKind enumerates the three actor shapes of the GLOSSARY.
type ActorKind int

const (
	ActorAnonymous ActorKind = iota
	ActorPrincipal
	ActorRole
)

// AnonymousActor is the zero actor: no principal is authenticated.
func AnonymousActor() Actor { return Actor{Kind: ActorAnonymous} }

// PrincipalActor wraps an authenticated user acting as themself.
func PrincipalActor(userID string) Actor { return Actor{Kind: ActorPrincipal, UserID: userID} }

// AssumedRoleActor wraps a principal acting through an assumed role.
func AssumedRoleActor(principal, assumedRole string) Actor {
	return Actor{Kind: ActorRole, UserID: principal, AssumedRole: assumedRole}
}

// subjectID returns the "user:id" (or "role:id") string the tuple store
// evaluates rule bodies against: a Role actor checks permissions as the
// assumed role, not the underlying principal (§4.3 check-actor).
func (a Actor) subjectID() string {
	switch a.Kind {
	case ActorRole:
		return "role:" + a.AssumedRole
	case ActorPrincipal:
		return "user:" + a.UserID
	default:
		return ""
	}
}
