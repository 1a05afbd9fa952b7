package tuplemigration

import (
	"fmt"

	"github.com/lakekeeper/catalog-authz/internal/relationschema"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
)

// rewriteTuples rewrites every tuple touching tb into its v4 equivalent
// (§4.4 step 6): the "table:<id>"/"view:<id>" endpoint — object or user —
// is replaced by "lakekeeper_table:<warehouseID>/<id>" or
// "lakekeeper_view:<warehouseID>/<id>". Endpoints that do not name tb
// (namespaces, users, roles, other tabulars picked up incidentally) are
// left untouched.
func rewriteTuples(tuples []relationstore.Tuple, tb tabularRef, warehouseID string) []relationstore.Tuple {
	v3 := tb.object
	v4 := lakekeeperObject(tb.kind, warehouseID, idFromObject(tb.object))

	out := make([]relationstore.Tuple, 0, len(tuples))
	for _, t := range tuples {
		rewritten := t
		if t.Object == v3 {
			rewritten.Object = v4
		}
		if t.User == v3 {
			rewritten.User = v4
		}
		out = append(out, rewritten)
	}
	return out
}

// lakekeeperObject formats the v4 warehouse-scoped object id for a v3
// table/view kind and id.
func lakekeeperObject(kind relationschema.Kind, warehouseID, id string) string {
	var v4Kind relationschema.Kind
	switch kind {
	case relationschema.KindTable:
		v4Kind = relationschema.KindLakekeeperTable
	case relationschema.KindView:
		v4Kind = relationschema.KindLakekeeperView
	default:
		v4Kind = kind
	}
	return fmt.Sprintf("%s:%s/%s", v4Kind, warehouseID, id)
}
