/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tasktrack/apiserver/internal/db"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator, log *slog.Logger) error {
			if err := m.Up(); err != nil {
				return err
			}
			return logVersion(m, log)
		})
	},
}

var migrateDownSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator, log *slog.Logger) error {
			if err := m.Down(migrateDownSteps); err != nil {
				return err
			}
			return logVersion(m, log)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(logVersion)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	migrateDownCmd.Flags().IntVarP(&migrateDownSteps, "steps", "n", 1, "number of migrations to roll back")
}

func withMigrator(fn func(*db.Migrator, *slog.Logger) error) error {
	cfg, log := loadConfig()

	migrator, err := db.NewMigrator(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("failed to close migrator", slog.Any("error", err))
		}
	}()
	return fn(migrator, log)
}

func logVersion(m *db.Migrator, log *slog.Logger) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		log.Error("schema is dirty, manual intervention required", slog.Uint64("version", uint64(version)))
		return nil
	}
	log.Info("schema version", slog.Uint64("version", uint64(version)))
	return nil
}
