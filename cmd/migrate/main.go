// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cleanward/internal/config"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, force")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		steps  = flag.Int("steps", 1, "Number of migrations to roll back with -action=down")
		target = flag.Int("version", -1, "Version to force with -action=force")
		dir    = flag.String("dir", "", "Migrations directory (default migrations/<db>)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.WithFields(map[string]interface{}{
		"db":     *dbType,
		"action": *action,
	})

	path := *dir
	if path == "" {
		path = "migrations/" + *dbType
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Fatalf("migrations directory not found: %s", path)
	}

	switch *dbType {
	case "postgres":
		err = runPostgresMigrations(logger, cfg, path, *action, *steps, *target)
	case "clickhouse":
		err = runClickHouseMigrations(logger, cfg, path, *action)
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
}

func runPostgresMigrations(logger *logging.Logger, cfg *config.Config, path, action string, steps, target int) error {
	m := storage.NewMigrator(cfg.Database.Postgres.DSN(), path)

	switch action {
	case "up":
		logger.Info("Running Postgres migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		logger.Info("Postgres migrations completed successfully")

	case "down":
		logger.WithField("steps", steps).Info("Rolling back Postgres migrations...")
		if err := m.Down(steps); err != nil {
			return err
		}
		logger.Info("Postgres migrations rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")

	case "force":
		if target < 0 {
			return fmt.Errorf("-version is required with -action=force")
		}
		if err := m.Force(target); err != nil {
			return err
		}
		logger.WithField("version", target).Info("Postgres migration version forced")

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(logger *logging.Logger, cfg *config.Config, path, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	ctx := context.Background()

	logger.Info("Connecting to ClickHouse...")
	db, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	logger.Info("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(ctx, db, path); err != nil {
		return err
	}

	logger.Info("ClickHouse migrations completed successfully")
	return nil
}
