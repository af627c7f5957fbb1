package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator applies the Postgres schema migrations in a directory
type Migrator struct {
	sourceURL   string
	databaseURL string
}

// NewMigrator creates a migrator for the migrations under path
func NewMigrator(databaseURL, path string) *Migrator {
	return &Migrator{
		sourceURL:   "file://" + path,
		databaseURL: databaseURL,
	}
}

func (m *Migrator) with(fn func(*migrate.Migrate) error) error {
	mg, err := migrate.New(m.sourceURL, m.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = mg.Close()
	}()
	return fn(mg)
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of migrations
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	})
}

// Version returns the applied migration version
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.with(func(mg *migrate.Migrate) error {
		var verr error
		version, dirty, verr = mg.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get migration version: %w", verr)
		}
		return nil
	})
	return version, dirty, err
}

// Force sets the version without running migrations, clearing a dirty flag
func (m *Migrator) Force(version int) error {
	return m.with(func(mg *migrate.Migrate) error {
		return mg.Force(version)
	})
}
