package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

func newPostgresMigrator(cfg Config) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return nil, &redactedError{
			msg: fmt.Sprintf("failed to create migrator for %s: %s", cfg.RedactedURL(), cfg.redact(err.Error())),
			err: err,
		}
	}
	return m, nil
}

// RunMigrations executes the postgres migrations
func RunMigrations(logger *logrus.Logger, cfg Config) error {
	logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Debug("Running database migrations")

	m, err := newPostgresMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &redactedError{msg: "failed to run migrations: " + cfg.redact(err.Error()), err: err}
	}

	return nil
}

// RunSQLiteMigrations executes the sqlite migrations over an open handle.
// The migrator is not closed because that would close sqlDB with it.
func RunSQLiteMigrations(logger *logrus.Logger, sqlDB *sql.DB) error {
	logger.Debug("Running sqlite migrations")

	src, err := iofs.New(migrationFiles, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(sqlDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, EngineSQLite, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationStatus returns the current postgres migration version and dirty state
func MigrationStatus(logger *logrus.Logger, cfg Config) (uint, bool, error) {
	logger.Debug("Checking migration status")

	m, err := newPostgresMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Debug("Migration status retrieved")

	return version, dirty, nil
}
