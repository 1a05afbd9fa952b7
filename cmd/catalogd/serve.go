package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lakekeeper/catalog-authz/internal/lifecycle"
	"github.com/lakekeeper/catalog-authz/internal/obsmetrics"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lifecycle service's background task-queue workers until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := defaultLogger(verbose)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownMetrics, err := obsmetrics.Bootstrap(cfg.MetricsExportPeriod)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()

		resolvedDB := resolveDBPath(cfg)
		dep, err := bootstrap(ctx, cfg, resolvedDB, log)
		if err != nil {
			return err
		}
		defer dep.Close()

		g, gctx := errgroup.WithContext(ctx)
		for _, queueName := range []string{lifecycle.QueueTabularExpiration, lifecycle.QueueTabularPurge} {
			queueName := queueName
			worker := taskqueue.NewWorker(dep.queue, queueName, expirationAndPurgeHandler(dep, queueName),
				taskqueue.WithLogger(log), taskqueue.WithStaleAfter(cfg.QueueDefaults.HeartbeatTimeout))
			g.Go(func() error { return worker.Run(gctx) })
		}

		log.InfoContext(ctx, "catalogd: serving", slog.String("db", resolvedDB))
		return g.Wait()
	},
}

// expirationAndPurgeHandler returns the Handler a worker invokes for each
// picked task. Both queues this command drives (§4.5 Delete) are
// storage-cleanup tasks external to this module's scope (§1: "The
// object-storage clients that physically delete data files" is out of
// scope); the handler here only logs receipt and records success, the way
// a real deployment's handler would delegate to an injected storage
// client before doing the same.
func expirationAndPurgeHandler(dep *deployment, queueName string) taskqueue.Handler {
	return func(ctx context.Context, task taskqueue.Task) error {
		dep.log.InfoContext(ctx, "catalogd: processing task",
			slog.String("queue", queueName), slog.String("task_id", task.ID),
			slog.String("entity_kind", string(task.Entity.Kind)), slog.String("entity_id", task.Entity.ObjectID))
		return nil
	}
}
