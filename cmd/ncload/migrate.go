package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/db"
	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	a := &app{log: log}
	if err := a.connect(ctx); err != nil {
		fail(log, exitCode(nil, err), err, "database connection failed")
	}
	defer a.pool.Close()

	if err := db.ApplyMigrations(ctx, a.pool, log); err != nil {
		a.pool.Close()
		fail(log, exitcode.CatalogError, err, "migration failed")
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
