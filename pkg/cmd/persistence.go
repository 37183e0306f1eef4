// Package cmd provides common initialization for the command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence/postgresql"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence/sqlite"
)

// NewPersistence creates a persistence backend from a database URL. A
// postgres:// or postgresql:// URL selects PostgreSQL; anything else is
// treated as a SQLite database path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql persistence: %w", err)
		}

		return p, nil
	}

	p, err := sqlite.NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite persistence: %w", err)
	}

	return p, nil
}
