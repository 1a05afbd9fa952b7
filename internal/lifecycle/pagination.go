package lifecycle

import (
	"context"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/relationschema"
)

// fetchPageFunc fetches up to batchSize rows starting from token; an
// empty returned token means the underlying source is exhausted.
type fetchPageFunc[T any] func(ctx context.Context, token string, batchSize int) (page []T, next string, err error)

// filteredPage implements §4.5's pagination rule: loop issuing paginated
// CS reads and applying a batched are_allowed_X_actions_vec check, until
// the requested page size is reached or the source is exhausted. Each CS
// fetch asks for exactly the remaining row budget, so every fetched row
// is examined and either emitted or correctly skipped — no row a batch
// already paid to fetch is ever discarded uncounted.
func filteredPage[T any](
	ctx context.Context,
	az *authz.Authorizer,
	actor authz.Actor,
	kind relationschema.Kind,
	action relationschema.Action,
	idOf func(T) string,
	pageSize int,
	startToken string,
	fetch fetchPageFunc[T],
) ([]T, string, error) {
	var out []T
	token := startToken
	for len(out) < pageSize {
		remaining := pageSize - len(out)
		rows, next, err := fetch(ctx, token, remaining)
		if err != nil {
			return nil, "", err
		}

		if len(rows) > 0 {
			ids := make([]string, len(rows))
			for i, r := range rows {
				ids[i] = idOf(r)
			}
			allowed, err := az.AreAllowedVec(ctx, actor, kind, ids, action)
			if err != nil {
				return nil, "", err
			}
			for _, r := range rows {
				if allowed[idOf(r)] {
					out = append(out, r)
				}
			}
		}

		if next == "" {
			return out, "", nil
		}
		token = next
	}
	return out, token, nil
}
