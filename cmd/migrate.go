/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/o2a/bapsim/config"
	"github.com/spf13/cobra"
)

const migrationsURL = "file://internal/db/migrations"

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(m *migrate.Migrate) error { return m.Down() })
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

func runMigration(apply func(*migrate.Migrate) error) error {
	cfg := config.LoadConfig()
	dsn, err := buildMongoURL(cfg.Mongo)
	if err != nil {
		return err
	}

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := apply(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// buildMongoURL puts the configured database into the connection string
// path, which is where the migrate driver looks for it. A database already in
// the path is kept as authSource, since that is its meaning in the URI.
func buildMongoURL(cfg config.MongoConfig) (string, error) {
	if cfg.URI == "" {
		return "", errors.New("MONGO_URI is required")
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return "", fmt.Errorf("parse MONGO_URI: %w", err)
	}
	if authDB := strings.Trim(u.Path, "/"); authDB != "" && authDB != cfg.Database {
		query := u.Query()
		if query.Get("authSource") == "" {
			query.Set("authSource", authDB)
			u.RawQuery = query.Encode()
		}
	}
	u.Path = "/" + cfg.Database
	return u.String(), nil
}
