package lifecycle

import (
	"context"
	"time"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogerr"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
)

// UpsertUser implements create_or_update_user (§4.5 expansion): idempotent,
// no authorization check beyond the caller being an authenticated
// principal updating their own record, and no graph edges (a user is only
// ever the subject side of a tuple, never an object).
func (s *Service) UpsertUser(ctx context.Context, actor authz.Actor, id, displayName, email string) (catalogstore.User, error) {
	if actor.Kind == authz.ActorAnonymous {
		return catalogstore.User{}, catalogerr.ErrUnauthenticated
	}
	if actor.UserID != id {
		return catalogstore.User{}, catalogerr.NewForbidden("create_or_update_user", id)
	}

	existing, found, err := s.CS.GetUserByID(ctx, id)
	if err != nil {
		return catalogstore.User{}, err
	}
	now := time.Now()
	u := catalogstore.User{ID: id, DisplayName: displayName, Email: email, CreatedAt: now, UpdatedAt: now}
	if found {
		u.CreatedAt = existing.CreatedAt
	}

	tx, err := s.CS.BeginWrite(ctx)
	if err != nil {
		return catalogstore.User{}, err
	}
	defer tx.Rollback()
	if err := tx.UpsertUser(ctx, u); err != nil {
		return catalogstore.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalogstore.User{}, err
	}

	s.emit(ctx, eventbus.Event{Kind: eventbus.EventUserUpserted, ActorID: id, OccurredAt: now})
	return u, nil
}

// GetUser is a plain lookup; users carry no authorization edges of their
// own to check against (§4.5 expansion).
func (s *Service) GetUser(ctx context.Context, id string) (catalogstore.User, error) {
	u, found, err := s.CS.GetUserByID(ctx, id)
	if err != nil {
		return catalogstore.User{}, err
	}
	if !found {
		return catalogstore.User{}, catalogerr.NewNotFound("user", id)
	}
	return u, nil
}

// ListUsers implements list_users (§4.5 expansion): unfiltered, since
// users carry no visibility relation of their own.
func (s *Service) ListUsers(ctx context.Context, pageSize int, token string) ([]catalogstore.User, string, error) {
	return s.CS.ListUsersPage(ctx, s.pageSize(pageSize), token)
}
