// Package migrations applies the PostgreSQL schema from embedded SQL files.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"math"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator runs schema migrations against one database.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator for the database at databaseURL.
func New(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration target: %w", err)
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies all pending migrations. A dirty schema left behind by a failed
// run is forced back to its recorded version first.
func (m *Migrator) Up() error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		m.logger.Warn("schema is dirty, forcing version", zap.Uint("version", version))

		if version > math.MaxInt32 {
			return fmt.Errorf("schema version %d out of range", version)
		}

		if err := m.migrate.Force(int(version)); err != nil {
			return fmt.Errorf("force schema version: %w", err)
		}
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("schema is up to date", zap.Uint("version", version))

			return nil
		}

		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, _ := m.migrate.Version()
	m.logger.Info("schema migrated", zap.Uint("from", version), zap.Uint("to", newVersion))

	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}

		return fmt.Errorf("roll back migration: %w", err)
	}

	version, _, _ := m.migrate.Version()
	m.logger.Info("schema rolled back", zap.Uint("version", version))

	return nil
}

// Version returns the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	return errors.Join(sourceErr, dbErr)
}

// Up migrates the database at databaseURL to the latest version.
func Up(databaseURL string, logger *zap.Logger) error {
	m, err := New(databaseURL, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	return m.Up()
}
