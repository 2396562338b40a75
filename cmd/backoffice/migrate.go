package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/migration"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(conn *gorm.DB, log *zap.Logger) error {
			if err := migration.Migrate(conn); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("dialect", conn.Dialector.Name()))
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recent migrations (postgres only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return withDatabase(func(conn *gorm.DB, log *zap.Logger) error {
			sqlDB, err := postgresHandle(conn)
			if err != nil {
				return err
			}
			if err := migration.Rollback(sqlDB, steps); err != nil {
				return err
			}
			log.Info("migrations reverted", zap.Int("steps", steps))
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied migration version (postgres only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(conn *gorm.DB, log *zap.Logger) error {
			sqlDB, err := postgresHandle(conn)
			if err != nil {
				return err
			}
			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to revert")
}

func withDatabase(fn func(conn *gorm.DB, log *zap.Logger) error) error {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(nil, cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return fn(conn, log.Named("migrate"))
}

var errNotPostgres = errors.New("versioned migrations require DATABASE_TYPE=postgres")

func postgresHandle(conn *gorm.DB) (*sql.DB, error) {
	if conn.Dialector.Name() != "postgres" {
		return nil, errNotPostgres
	}
	return conn.DB()
}
