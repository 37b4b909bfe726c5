// Package postgres implements repositories.Store and repositories.JobStore
// over PostgreSQL, following the connection-pool conventions of the
// teacher's internal/adapters/postgres/connection.go.
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/config"
)

// NewConnection opens a pooled Postgres connection and verifies it with a
// ping before returning.
func NewConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// RunMigrations creates the schema if it does not already exist. A real
// deployment would use a versioned migration tool; for this self-hosted
// service a single idempotent DDL pass at startup keeps operations simple.
func RunMigrations(db *sqlx.DB, logger *zap.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			logger.Error("migration statement failed", zap.Error(err), zap.String("statement", stmt))
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	logger.Info("schema is up to date")
	return nil
}
