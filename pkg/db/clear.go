package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearDocuments removes every stored document. With a non-empty collection
// only that collection is cleared. The schema is preserved.
func ClearDocuments(ctx context.Context, pool *pgxpool.Pool, collection string) (int64, error) {
	if collection == "" {
		slog.Info(fmt.Sprintf("%s - Clearing all documents", clearLogPrefix))
		tag, err := pool.Exec(ctx, `DELETE FROM documents`)
		if err != nil {
			return 0, fmt.Errorf("%s - delete failed: %w", clearLogPrefix, err)
		}
		return tag.RowsAffected(), nil
	}

	slog.Info(fmt.Sprintf("%s - Clearing collection %s", clearLogPrefix, collection))
	tag, err := pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return 0, fmt.Errorf("%s - delete collection %s failed: %w", clearLogPrefix, collection, err)
	}
	return tag.RowsAffected(), nil
}
