// Package relationstore is the Relation Store Client (RSC, spec.md §4.1):
// a thin typed wrapper over a ReBAC tuple store. It exposes paginated
// read, batched write, check, list_objects, and a per-store
// authorization-model manager, all behind a process-wide request-permit
// semaphore.
package relationstore

import "fmt"

// Consistency selects the store's read mode (§4.1).
type Consistency int

const (
	// MinimizeLatency is the default: reads may observe a stale view.
	MinimizeLatency Consistency = iota
	// HigherConsistency is required wherever a post-delete read must not
	// see the deleted tuples (§5).
	HigherConsistency
)

// Tuple is a fact (user, relation, object) in the tuple store. Identifiers
// are strings of the form "type:id" or "type:id#userset" (§6).
type Tuple struct {
	User     string
	Relation string
	Object   string
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s#%s@%s", t.Object, t.Relation, t.User)
}

// TupleKey is a partial match pattern for Read. Any of User, Relation, or
// Object may be empty to mean "any"; Object must at minimum name a type
// ("type:" is accepted, "" is rejected by the store — see Read).
type TupleKey struct {
	User     string
	Relation string
	Object   string
}

// matches reports whether t satisfies the partial key k. Object support a
// type-only prefix match ("namespace:" matches any namespace:* object).
func (k TupleKey) matches(t Tuple) bool {
	if k.User != "" && k.User != t.User {
		return false
	}
	if k.Relation != "" && k.Relation != t.Relation {
		return false
	}
	if k.Object == "" {
		return true
	}
	if k.Object == t.Object {
		return true
	}
	if len(k.Object) > 0 && k.Object[len(k.Object)-1] == ':' {
		return len(t.Object) >= len(k.Object) && t.Object[:len(k.Object)] == k.Object
	}
	return false
}
