package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/watch-party/internal/postgres"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back the embedded schema migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "migrations to roll back with down")
}

func runMigrate(_ *cobra.Command, args []string) error {
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is not set")
	}
	dir := "up"
	if len(args) == 1 {
		dir = args[0]
	}

	switch dir {
	case "up":
		if err := postgres.MigrateUp(cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if err := postgres.MigrateDown(cfg.Postgres.DSN, migrateSteps); err != nil {
			return err
		}
	default:
		return errors.New("direction must be up or down")
	}
	slog.Info("migrate done", "direction", dir)
	return nil
}
