package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// source for MigrationPath
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the schema migrations.  Each operation opens its own
// short-lived connection because golang-migrate closes the pool it is given.
type Migrator struct {
	cfg    config.DatabaseConfig
	logger logging.Logger
}

// NewMigrator creates a Migrator for the database described by cfg.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) *Migrator {
	return &Migrator{cfg: cfg, logger: log}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	db, err := sqlOpen(driverName, buildDSN(m.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	return newMigrate(db, m.cfg.MigrationPath)
}

func newMigrate(db *sql.DB, migrationPath string) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	if migrationPath != "" {
		mg, err := migrate.NewWithDatabaseInstance("file://"+migrationPath, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
		return mg, nil
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mg, nil
}

// Up applies every pending migration.  Having nothing to apply is not an
// error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Database schema is up to date")
			return nil
		}
		version, _, _ := mg.Version()
		return fmt.Errorf("failed to run migrations (current version: %d): %w", version, err)
	}

	version, dirty, _ := mg.Version()
	m.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}

	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("failed to rollback %d step(s): %w", steps, err)
	}
	m.logger.Info("Database migrations rolled back", logging.Int("steps", steps))
	return nil
}

// Version returns the applied schema version and whether the last migration
// left the schema dirty.  A fresh database reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}
