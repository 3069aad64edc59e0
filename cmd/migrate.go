/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/internal/db"
)

var (
	migrationsURL  string
	migrateDownAll bool
	migrateSteps   int
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
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		defer closeMigrator(migrator)

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("database schema is up to date")
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}
		logMigrationVersion(migrator)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (one step by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !migrateDownAll && migrateSteps < 1 {
			return errors.New("--steps must be at least 1")
		}
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		defer closeMigrator(migrator)

		if migrateDownAll {
			err = migrator.Down()
		} else {
			err = migrator.Steps(-migrateSteps)
		}
		if err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("nothing to roll back")
				return nil
			}
			return fmt.Errorf("migrate down failed: %w", err)
		}
		logMigrationVersion(migrator)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsURL, "source", "file://internal/db/migrations", "migration source URL")
	migrateDownCmd.Flags().BoolVar(&migrateDownAll, "all", false, "roll back every migration")
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
}

func newMigrator() (*migrate.Migrate, error) {
	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn("failed to close migrator", zap.Error(err))
	}
}

func logMigrationVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("database schema has no migrations applied")
			return
		}
		logger.Warn("failed to read schema version", zap.Error(err))
		return
	}
	logger.Info("database schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
