package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearStore removes stored keys. An empty prefix truncates the whole table;
// otherwise only keys starting with prefix are deleted. Returns rows removed
// (-1 for a truncate).
func ClearStore(ctx context.Context, pool *pgxpool.Pool, prefix string) (int64, error) {
	if prefix == "" {
		slog.Info(fmt.Sprintf("%s - Truncating dbi_store", clearLogPrefix))
		if _, err := pool.Exec(ctx, `TRUNCATE TABLE dbi_store`); err != nil {
			return 0, fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
		}
		return -1, nil
	}

	tag, err := pool.Exec(ctx, `DELETE FROM dbi_store WHERE key LIKE $1`, escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("%s - delete prefix %s failed: %w", clearLogPrefix, prefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Removed %d keys with prefix %s", clearLogPrefix, tag.RowsAffected(), prefix))
	return tag.RowsAffected(), nil
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
