package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lakekeeper/catalog-authz/internal/authz"
	"github.com/lakekeeper/catalog-authz/internal/catalogconfig"
	"github.com/lakekeeper/catalog-authz/internal/catalogstore"
	"github.com/lakekeeper/catalog-authz/internal/eventbus"
	"github.com/lakekeeper/catalog-authz/internal/lifecycle"
	"github.com/lakekeeper/catalog-authz/internal/relationstore"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

// deployment bundles every component the Lifecycle Service needs, wired
// exactly as §2's data-flow diagram describes (LS sitting on top of
// CS/AZ/TQ). It is the server process's analogue of the teacher's
// cmd/bd "build the storage backend from config" step in main.go.
type deployment struct {
	cfg      catalogconfig.Config
	store    *catalogstore.Store
	rsc      *relationstore.Client
	modelMgr *relationstore.ModelManager
	authz    *authz.Authorizer
	bus      *eventbus.Bus
	queue    *taskqueue.Queue
	service  *lifecycle.Service
	log      *slog.Logger
}

// bootstrap opens the catalog store at dbPath and wires the rest of the
// components against the resolved Config. The tuple store itself is an
// external collaborator (spec.md §1); since no production Backend ships
// in this module (see relationstore.Backend's doc comment),
// relationstore.NewInMemoryBackend is used for a single-process
// deployment -- callers embedding this module against a real ReBAC
// engine provide their own Backend and skip this package's bootstrap.
func bootstrap(ctx context.Context, cfg catalogconfig.Config, dbPath string, log *slog.Logger) (*deployment, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := catalogstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open catalog store: %w", err)
	}

	rsc := relationstore.NewClient(relationstore.NewInMemoryBackend(), cfg.OpenFGA.MaxConcurrentRequests, cfg.OpenFGA.PageSize)
	modelMgr := relationstore.NewModelManager(rsc)
	if state, err := modelMgr.EnsureReady(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bootstrap: model manager: %w", err)
	} else {
		log.InfoContext(ctx, "bootstrap: authorization model ready", slog.String("state", state.String()))
	}

	az := authz.New(rsc, cfg.ServerID)

	bus := eventbus.New(log)
	for _, h := range eventbus.DefaultHandlers(log) {
		bus.Register(h)
	}

	queueCfg := taskqueue.NewConfigProvider(30 * time.Second)
	queueCfg.SetDefault(taskqueue.QueueConfig{
		MaxAttempts:       cfg.QueueDefaults.MaxAttempts,
		HeartbeatTimeout:  cfg.QueueDefaults.HeartbeatTimeout,
		InitialBackoff:    cfg.QueueDefaults.InitialBackoff,
		MaxBackoff:        cfg.QueueDefaults.MaxBackoff,
		BackoffMultiplier: taskqueue.DefaultQueueConfig.BackoffMultiplier,
	})
	queue := taskqueue.New(store.DB(), queueCfg)

	lcCfg := lifecycle.DefaultConfig()
	lcCfg.MaxNamespaceDepth = cfg.MaxNamespaceDepth
	lcCfg.ReservedNamespaces = cfg.ReservedNamespaceSet()

	svc := lifecycle.New(store, az, queue, bus, nil, lcCfg, log)

	return &deployment{
		cfg: cfg, store: store, rsc: rsc, modelMgr: modelMgr,
		authz: az, bus: bus, queue: queue, service: svc, log: log,
	}, nil
}

func (d *deployment) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Error("bootstrap: close catalog store", slog.Any("error", err))
		}
	}
}

func defaultLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
