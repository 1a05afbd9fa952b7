// Package lifecycle is the Lifecycle Service (spec.md §4.5): the single
// place that owns the per-verb skeleton — fetch, authorize, validate,
// mutate the Catalog Store, mutate the authorization graph,
// schedule/cancel tasks, commit, emit event — for every catalog entity
// kind. It is the layer a REST or Iceberg-catalog surface would sit on
// top of; no such surface is built here (§1 scope boundary).
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

// SecretStore is the narrow collaborator interface SPEC_FULL adds for
// storage-credential rotation (§7: "deleting a stale secret after a
// storage-credential rotation" is named with no owning component
// elsewhere). It is external to this module (§1 scope boundary); no
// implementation ships here.
type SecretStore interface {
	Create(ctx context.Context, warehouseID string, secret []byte) (secretID string, err error)
	Rotate(ctx context.Context, warehouseID, secretID string, secret []byte) (newSecretID string, err error)
	Delete(ctx context.Context, secretID string) error
}

// Config holds the deployment-wide policy knobs §6 lists outside the
// tuple-store/queue configuration blocks.
type Config struct {
	ReservedNamespaces map[string]bool
	MaxNamespaceDepth  int
	DefaultPageSize    int
}

// DefaultConfig mirrors §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		ReservedNamespaces: map[string]bool{"system": true},
		MaxNamespaceDepth:  5,
		DefaultPageSize:    100,
	}
}

// Service wires the Catalog Store, Authorizer, Task Queue, and event bus
// behind the per-verb skeleton shared by every entity handler.
type Service struct {
	CS      *catalogstore.Store
	AZ      *authz.Authorizer
	TQ      *taskqueue.Queue
	Bus     *eventbus.Bus
	Secrets SecretStore
	Config  Config
	log     *slog.Logger
}

// New builds a Service. log may be nil (falls back to slog.Default()).
func New(cs *catalogstore.Store, az *authz.Authorizer, tq *taskqueue.Queue, bus *eventbus.Bus, secrets SecretStore, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{CS: cs, AZ: az, TQ: tq, Bus: bus, Secrets: secrets, Config: cfg, log: log}
}

// emit dispatches a best-effort lifecycle event; failures are logged, not
// returned, per the skeleton's final step.
func (s *Service) emit(ctx context.Context, event eventbus.Event) {
	if s.Bus == nil {
		return
	}
	result := s.Bus.Dispatch(ctx, &event)
	for _, w := range result.Warnings {
		s.log.WarnContext(ctx, "lifecycle: event handler warning", slog.String("kind", string(event.Kind)), slog.String("warning", w))
	}
}

// pageSize resolves a caller-requested page size against the configured default.
func (s *Service) pageSize(requested int) int {
	if requested > 0 {
		return requested
	}
	if s.Config.DefaultPageSize > 0 {
		return s.Config.DefaultPageSize
	}
	return catalogstore.DefaultPageSize
}
