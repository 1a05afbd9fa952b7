package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lakekeeper/catalog-authz/internal/relationstore"
	"github.com/lakekeeper/catalog-authz/internal/tuplemigration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog-store migrations and run the v3->v4 tuple push-down if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := defaultLogger(verbose)
		ctx := cmd.Context()

		// catalogstore.Open applies every pending migration step as part of
		// opening the handle (§4.6 expansion: "migrations ownership").
		dep, err := bootstrap(ctx, cfg, resolveDBPath(cfg), log)
		if err != nil {
			return err
		}
		defer dep.Close()

		state, err := dep.modelMgr.CurrentState(ctx)
		if err != nil {
			return err
		}
		if state != relationstore.ModelV3Installed {
			log.InfoContext(ctx, "catalogd migrate: nothing to do", slog.String("state", state.String()))
			return nil
		}

		// engine.Run writes the migrating marker and the v4 marker itself.
		engine := tuplemigration.New(dep.rsc, dep.modelMgr, cfg.ServerID)
		stats, err := engine.Run(ctx)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "catalogd migrate: v3->v4 push-down complete",
			slog.Int("warehouses", stats.Warehouses), slog.Int("tabulars", stats.Tabulars), slog.Int("tuples_written", stats.TuplesWritten))
		return nil
	},
}
