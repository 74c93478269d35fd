package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SetupDatabase runs the postgres migrations and opens a GORM connection
func SetupDatabase(logger *logrus.Logger, cfg Config) (*gorm.DB, error) {
	logger.Debug("Starting database setup")

	if cfg.Engine != EnginePostgres {
		return nil, fmt.Errorf("gorm setup supports postgres only, got %q", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	if err := RunMigrations(logger, cfg); err != nil {
		return nil, err
	}

	logger.Debug("Establishing GORM database connection")

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         NewGormLogrusLogger(logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The pipeline holds one writer for the whole run
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	logger.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Info("Database setup completed successfully")
	return db, nil
}
