// Command catalogd is the server bootstrap CLI for the catalog
// authorization and lifecycle engine (SPEC_FULL.md §2 DOMAIN STACK:
// "spf13/cobra + spf13/viper | cmd/catalogd | server bootstrap CLI:
// serve, migrate, worker subcommands"). It wires the Catalog Store,
// Relation Store Client, Authorizer, Task Queue, and Lifecycle Service
// together; no REST surface is built on top of it (§1 scope boundary).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakekeeper/catalog-authz/internal/catalogconfig"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "Multi-tenant table-catalog authorization and lifecycle engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to catalogd.yaml (defaults + env vars apply regardless)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Catalog store database path (overrides database_dsn)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, workerCmd)
}

func loadConfig() (catalogconfig.Config, error) {
	return catalogconfig.Load(configPath, rootCmd.PersistentFlags())
}

// resolveDBPath applies the --db flag over database_dsn over the
// built-in default, the same ascending-priority order catalogconfig.Load
// already uses for everything else.
func resolveDBPath(cfg catalogconfig.Config) string {
	if dbPath != "" {
		return dbPath
	}
	if cfg.DatabaseDSN != "" {
		return cfg.DatabaseDSN
	}
	return "catalogd.sqlite"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
