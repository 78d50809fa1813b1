package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldline/slaflow/pkg/persistence"
	"github.com/fieldline/slaflow/pkg/persistence/memory"
	"github.com/fieldline/slaflow/pkg/persistence/postgresql"
)

// NewPersistence creates a workflow store from a database URL. Supported
// schemes: memory:// (single process, volatile) and postgres://.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Store, error) {
	switch {
	case databaseURL == "" || strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewStore(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewStore(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}
