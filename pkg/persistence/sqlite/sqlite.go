// Package sqlite provides SQLite persistence for pipeline runs. It is the
// default store for the demo deployment.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer on an embedded SQLite file.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence opens (or creates) the SQLite database at path and runs
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, path string) (*Persistence, error) {
	database, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under concurrent runs.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS pipelines (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				input_file TEXT,
				output_file TEXT,
				records_processed INTEGER NOT NULL DEFAULT 0,
				error_message TEXT
			);

			CREATE TABLE IF NOT EXISTS pipeline_stages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				pipeline_id INTEGER NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
				stage_name TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				started_at TIMESTAMP,
				completed_at TIMESTAMP,
				error_message TEXT,
				UNIQUE (pipeline_id, stage_name)
			);

			CREATE INDEX IF NOT EXISTS idx_pipeline_stages_pipeline_id
				ON pipeline_stages (pipeline_id);
		`,
	}
}
