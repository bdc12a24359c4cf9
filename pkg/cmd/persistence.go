// Package cmd wires shared infrastructure for the command-line entrypoints.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowgate/flowgate/pkg/persistence"
	"github.com/flowgate/flowgate/pkg/persistence/file"
	"github.com/flowgate/flowgate/pkg/persistence/postgres"
)

// NewPersistence selects a persistence backend from the database URL scheme.
// postgres:// and postgresql:// URLs get the PostgreSQL backend with
// migrations applied; anything else is treated as a file system root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
