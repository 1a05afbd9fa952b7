package relationstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
)

// InMemoryBackend is the reference Backend implementation: a process-local
// tuple store. It backs tests and a single-process deployment; it is the
// module's stand-in for the external ReBAC engine (§1 scope boundary —
// no third-party tuple-store client is wired, see DESIGN.md).
//
// InMemoryBackend can simulate the store's eventual consistency: when
// StaleReadRounds > 0, a deleted tuple remains visible to MinimizeLatency
// reads for that many subsequent read calls, modeling the
// "ghost tuple" behavior the two-pass delete (§3.1, §9) exists to defeat.
type InMemoryBackend struct {
	mu     sync.Mutex
	tuples []Tuple

	// StaleReadRounds, when > 0, makes delete()s linger for N subsequent
	// MinimizeLatency reads before truly disappearing. HigherConsistency
	// reads always see the current state.
	StaleReadRounds int
	pendingGhosts   []ghostTuple
}

type ghostTuple struct {
	tuple      Tuple
	roundsLeft int
}

// NewInMemoryBackend returns an empty in-memory tuple store.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{}
}

func (m *InMemoryBackend) WriteBatch(_ context.Context, writes, deletes []Tuple) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		for _, existing := range m.tuples {
			if existing == w {
				return fmt.Errorf("write %s: %w", w, catalogerr.ErrConflict)
			}
		}
	}
	for _, d := range deletes {
		found := false
		for i, existing := range m.tuples {
			if existing == d {
				m.tuples = append(m.tuples[:i], m.tuples[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("delete %s: %w", d, catalogerr.ErrNotFound)
		}
		if m.StaleReadRounds > 0 {
			m.pendingGhosts = append(m.pendingGhosts, ghostTuple{tuple: d, roundsLeft: m.StaleReadRounds})
		}
	}
	m.tuples = append(m.tuples, writes...)
	return nil
}

func (m *InMemoryBackend) snapshot(consistency Consistency) []Tuple {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Tuple, len(m.tuples))
	copy(out, m.tuples)

	if consistency == HigherConsistency {
		return out
	}

	// Decrement ghosts and append any still-lingering deleted tuples.
	remaining := m.pendingGhosts[:0]
	for _, g := range m.pendingGhosts {
		out = append(out, g.tuple)
		g.roundsLeft--
		if g.roundsLeft > 0 {
			remaining = append(remaining, g)
		}
	}
	m.pendingGhosts = remaining
	return out
}

func (m *InMemoryBackend) ReadPage(_ context.Context, key TupleKey, pageSize int, pageToken string, consistency Consistency) ([]Tuple, string, error) {
	all := m.snapshot(consistency)

	var matched []Tuple
	for _, t := range all {
		if key.matches(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].String() < matched[j].String() })

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", catalogerr.NewValidation("page_token", "malformed")
		}
		start = n
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

func (m *InMemoryBackend) Check(ctx context.Context, user, relation, object string) (bool, error) {
	return m.checkDepth(ctx, user, relation, object, 0)
}

const maxInheritDepth = 16

// checkDepth evaluates relation for user on object. Direct/hierarchical
// relations are resolved by tuple lookup (with one hop of userset
// expansion, e.g. "role:R#assignee"); derived "can_*" relations are
// resolved per relationschema.DerivationRule as a disjunction over direct
// grants on the object, optionally extended to the object's hierarchical
// parent (§3.1). Production deployments delegate this evaluation to the
// external ReBAC engine; this backend exists to exercise the Authorizer's
// call pattern in tests without one.
func (m *InMemoryBackend) checkDepth(ctx context.Context, user, relation, object string, depth int) (bool, error) {
	if depth > maxInheritDepth {
		return false, nil
	}

	grants, inherit, isDerived := relationschema.DerivationRule(relationschema.Relation(relation))
	if !isDerived {
		return m.directCheck(ctx, user, relation, object)
	}

	for _, g := range grants {
		ok, err := m.directCheck(ctx, user, string(g), object)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if !inherit {
		return false, nil
	}

	parents, _, err := m.ReadPage(ctx, TupleKey{Object: object, Relation: string(relationschema.RelParent)}, 1, "", HigherConsistency)
	if err != nil {
		return false, err
	}
	if len(parents) == 0 {
		return false, nil
	}
	return m.checkDepth(ctx, user, relation, parents[0].User, depth+1)
}

// directCheck tests a single direct/hierarchical relation, expanding one
// hop of userset reference if the grant names a "type:id#relation" user.
func (m *InMemoryBackend) directCheck(ctx context.Context, user, relation, object string) (bool, error) {
	tuples, _, err := m.ReadPage(ctx, TupleKey{Object: object, Relation: relation}, 1<<20, "", HigherConsistency)
	if err != nil {
		return false, err
	}
	for _, t := range tuples {
		if t.User == user {
			return true, nil
		}
		if strings.Contains(t.User, "#") {
			parts := strings.SplitN(t.User, "#", 2)
			usersetObj, usersetRel := parts[0], parts[1]
			members, _, err := m.ReadPage(ctx, TupleKey{Object: usersetObj, Relation: usersetRel}, 1<<20, "", HigherConsistency)
			if err != nil {
				return false, err
			}
			for _, mm := range members {
				if mm.User == user {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (m *InMemoryBackend) ListObjects(ctx context.Context, objectType, relation, user string) ([]string, error) {
	// Gather every distinct object of objectType mentioned anywhere in the
	// store, then evaluate relation (possibly derived) for each. A real
	// ReBAC engine indexes this; the in-memory backend's "internal limit"
	// (§4.1) is simply the full object set.
	all, _, err := m.ReadPage(ctx, TupleKey{Object: objectType + ":"}, 1<<20, "", HigherConsistency)
	if err != nil {
		return nil, err
	}
	candidates := map[string]bool{}
	for _, t := range all {
		candidates[t.Object] = true
	}

	seen := map[string]bool{}
	var out []string
	for obj := range candidates {
		ok, err := m.checkDepth(ctx, user, relation, obj, 0)
		if err != nil {
			return nil, err
		}
		if ok && !seen[obj] {
			seen[obj] = true
			out = append(out, obj)
		}
	}
	sort.Strings(out)
	return out, nil
}
