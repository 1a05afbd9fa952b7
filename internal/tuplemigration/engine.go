// Package tuplemigration implements the Tuple Migration Engine (TME,
// spec.md §4.4): the v3→v4 warehouse-ID push-down. In v3 a table or view id
// addresses the tabular globally; v4 rewrites every tuple naming
// "table:<id>"/"view:<id>" — as object or as user — to
// "lakekeeper_table:<warehouse_id>/<id>"/"lakekeeper_view:<warehouse_id>/<id>",
// so that deleted table ids can be reused across warehouses (and even
// within the same warehouse after a purge) without colliding in the
// authorization graph.
package tuplemigration

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// Engine runs the v3→v4 push-down against a Relation Store Client. It never
// deletes the v3 tuples it reads — the v4 model coexists with v3 until a
// later cleanup pass (out of scope here, §4.4).
type Engine struct {
	rsc      *relationstore.Client
	mm       *relationstore.ModelManager
	serverID string
}

// New builds an Engine scoped to the deployment's server:<serverID> object.
func New(rsc *relationstore.Client, mm *relationstore.ModelManager, serverID string) *Engine {
	return &Engine{rsc: rsc, mm: mm, serverID: serverID}
}

// Stats reports what one Run produced, for logging and metrics.
type Stats struct {
	Warehouses    int
	Tabulars      int
	TuplesWritten int
}

// Run executes the full migration, guarded by the model manager's
// completed-version marker (§4.4 property 8: a second Run on an already
// migrated store is a no-op, no new tuples, no error).
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	state, err := e.mm.CurrentState(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("tuplemigration: %w", err)
	}
	if state == relationstore.ModelV4Installed {
		return Stats{}, nil
	}
	if state != relationstore.ModelV3Installed && state != relationstore.ModelMigrating {
		return Stats{}, catalogerr.NewConflict("modelversion", "MigrationPreconditionFailed")
	}

	if state == relationstore.ModelV3Installed {
		if err := e.mm.MarkMigrating(ctx); err != nil {
			return Stats{}, fmt.Errorf("tuplemigration: mark migrating: %w", err)
		}
	}

	serverObj := relationstore.TupleID(string(relationschema.KindServer), e.serverID)
	projects, err := e.readAllAsType(ctx, serverObj, string(relationschema.RelParent), string(relationschema.KindProject))
	if err != nil {
		return Stats{}, fmt.Errorf("tuplemigration: list projects: %w", err)
	}

	var (
		stats Stats
		mu    sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, project := range projects {
		project := project
		g.Go(func() error {
			warehouses, err := e.readAllAsType(gctx, project, string(relationschema.RelParent), string(relationschema.KindWarehouse))
			if err != nil {
				return fmt.Errorf("list warehouses under %s: %w", project, err)
			}
			for _, wh := range warehouses {
				n, written, err := e.migrateWarehouse(gctx, wh)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", wh, err)
				}
				mu.Lock()
				stats.Warehouses++
				stats.Tabulars += n
				stats.TuplesWritten += written
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if err := e.mm.MarkV4Installed(ctx); err != nil {
		return stats, fmt.Errorf("tuplemigration: mark v4 installed: %w", err)
	}
	return stats, nil
}

// readAllAsType reads every tuple matching (user, relation, object-of-type)
// and returns the distinct object ids ("type:id" form), fully paginated.
func (e *Engine) readAllAsType(ctx context.Context, user, relation, objectType string) ([]string, error) {
	tuples, err := e.rsc.ReadAllPages(ctx, relationstore.TupleKey{
		User:     user,
		Relation: relation,
		Object:   objectType + ":",
	}, e.rsc.PageSize(), 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(tuples))
	var out []string
	for _, t := range tuples {
		if !seen[t.Object] {
			seen[t.Object] = true
			out = append(out, t.Object)
		}
	}
	return out, nil
}

// migrateWarehouse processes one warehouse end to end: namespace BFS,
// tabular discovery, per-tabular tuple collection and rewrite, and a single
// batched write pass. Warehouses never share state with each other (§4.4
// step 4 memory bound; property: a partially completed migration leaves
// each processed warehouse fully rewritten).
func (e *Engine) migrateWarehouse(ctx context.Context, warehouseObj string) (tabularCount, tuplesWritten int, err error) {
	warehouseID := idFromObject(warehouseObj)

	namespaces, err := e.namespaceSubtree(ctx, warehouseObj)
	if err != nil {
		return 0, 0, fmt.Errorf("namespace subtree: %w", err)
	}

	tabulars, err := e.tabularsUnder(ctx, namespaces)
	if err != nil {
		return 0, 0, fmt.Errorf("tabular discovery: %w", err)
	}

	var (
		mu      sync.Mutex
		rewrite []relationstore.Tuple
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, tb := range tabulars {
		tb := tb
		g.Go(func() error {
			tuples, err := e.collectTabularTuples(gctx, tb)
			if err != nil {
				return err
			}
			rewritten := rewriteTuples(tuples, tb, warehouseID)
			mu.Lock()
			rewrite = append(rewrite, rewritten...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	written, err := e.writeIdempotent(ctx, rewrite)
	if err != nil {
		return 0, 0, fmt.Errorf("write rewritten tuples: %w", err)
	}
	return len(tabulars), written, nil
}

// namespaceSubtree breadth-first-searches the namespace tree rooted at
// warehouseObj (§4.4 step 3): at each level, list every namespace whose
// parent is a member of the current frontier, in parallel, until the
// frontier is empty.
func (e *Engine) namespaceSubtree(ctx context.Context, warehouseObj string) ([]string, error) {
	var all []string
	frontier := []string{warehouseObj}

	for len(frontier) > 0 {
		var (
			mu   sync.Mutex
			next []string
		)
		g, gctx := errgroup.WithContext(ctx)
		for _, parent := range frontier {
			parent := parent
			g.Go(func() error {
				children, err := e.readAllAsType(gctx, parent, string(relationschema.RelParent), string(relationschema.KindNamespace))
				if err != nil {
					return err
				}
				if len(children) == 0 {
					return nil
				}
				mu.Lock()
				next = append(next, children...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

// tabularsUnder enumerates every table/view child of every namespace in
// namespaces, in parallel (§4.4 step 4).
func (e *Engine) tabularsUnder(ctx context.Context, namespaces []string) ([]tabularRef, error) {
	var (
		mu  sync.Mutex
		out []tabularRef
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			tables, err := e.readAllAsType(gctx, ns, string(relationschema.RelParent), string(relationschema.KindTable))
			if err != nil {
				return err
			}
			views, err := e.readAllAsType(gctx, ns, string(relationschema.RelParent), string(relationschema.KindView))
			if err != nil {
				return err
			}
			mu.Lock()
			for _, t := range tables {
				out = append(out, tabularRef{kind: relationschema.KindTable, object: t})
			}
			for _, v := range views {
				out = append(out, tabularRef{kind: relationschema.KindView, object: v})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// tabularRef names one v3 table or view object discovered under a
// warehouse's namespace subtree.
type tabularRef struct {
	kind   relationschema.Kind
	object string
}

// collectTabularTuples fetches every tuple naming tb as object, and every
// tuple naming tb as user via the dispatch table of
// relationschema.ReferencingKinds (§4.4 step 5).
func (e *Engine) collectTabularTuples(ctx context.Context, tb tabularRef) ([]relationstore.Tuple, error) {
	var (
		mu  sync.Mutex
		out []relationstore.Tuple
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tuples, err := e.rsc.ReadAllPages(gctx, relationstore.TupleKey{Object: tb.object}, e.rsc.PageSize(), 0)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, tuples...)
		mu.Unlock()
		return nil
	})

	for _, refKind := range relationschema.ReferencingKinds(tb.kind) {
		refKind := refKind
		g.Go(func() error {
			tuples, err := e.rsc.ReadAllPages(gctx, relationstore.TupleKey{
				User:   tb.object,
				Object: string(refKind) + ":",
			}, e.rsc.PageSize(), 0)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, tuples...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeIdempotent writes newTuples in batches of at most
// relationstore.MaxTuplesPerWrite, skipping any tuple already present so a
// retried (or resumed) run of an already-processed warehouse is a no-op
// rather than a conflict (§4.4 properties: ordering, idempotent retry).
func (e *Engine) writeIdempotent(ctx context.Context, newTuples []relationstore.Tuple) (int, error) {
	if len(newTuples) == 0 {
		return 0, nil
	}

	pending := make([]relationstore.Tuple, 0, len(newTuples))
	checked := map[string]bool{}
	for _, t := range newTuples {
		existing, _, err := e.rsc.Read(ctx, relationstore.TupleKey{Object: t.Object, Relation: t.Relation}, relationstore.MaxTuplesPerWrite, "", relationstore.HigherConsistency)
		if err != nil {
			return 0, err
		}
		dup := false
		for _, ex := range existing {
			if ex == t {
				dup = true
				break
			}
		}
		key := t.String()
		if dup || checked[key] {
			continue
		}
		checked[key] = true
		pending = append(pending, t)
	}

	written := 0
	for len(pending) > 0 {
		n := relationstore.MaxTuplesPerWrite
		if n > len(pending) {
			n = len(pending)
		}
		batch := pending[:n]
		if err := e.rsc.Write(ctx, batch, nil); err != nil {
			return written, err
		}
		written += len(batch)
		pending = pending[n:]
	}
	return written, nil
}

func idFromObject(object string) string {
	for i := 0; i < len(object); i++ {
		if object[i] == ':' {
			return object[i+1:]
		}
	}
	return object
}
