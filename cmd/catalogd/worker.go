package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lakekeeper/catalog-authz/internal/lifecycle"
	"github.com/lakekeeper/catalog-authz/internal/taskqueue"
)

var workerQueueName string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a single task-queue worker against an existing catalog store, until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := defaultLogger(verbose)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resolvedDB := resolveDBPath(cfg)
		dep, err := bootstrap(ctx, cfg, resolvedDB, log)
		if err != nil {
			return err
		}
		defer dep.Close()

		queueName := workerQueueName
		if queueName == "" {
			queueName = lifecycle.QueueTabularExpiration
		}

		worker := taskqueue.NewWorker(dep.queue, queueName, expirationAndPurgeHandler(dep, queueName),
			taskqueue.WithLogger(log), taskqueue.WithStaleAfter(cfg.QueueDefaults.HeartbeatTimeout))

		log.InfoContext(ctx, "catalogd: worker running", slog.String("queue", queueName), slog.String("db", resolvedDB))
		return worker.Run(ctx)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerQueueName, "queue", lifecycle.QueueTabularExpiration,
		"Queue name to pick tasks from (tabular_expiration or tabular_purge)")
}
