package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgLogPrefix = "store:postgres"

// PostgresStore keeps values in the dbi_store table (see migrations/).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM dbi_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s - get %s: %w", pgLogPrefix, key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	slog.Debug(fmt.Sprintf("%s - Set key=%s", pgLogPrefix, key))
	_, err := p.pool.Exec(ctx,
		`INSERT INTO dbi_store (key, value, modified)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, modified = EXCLUDED.modified`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s - set %s: %w", pgLogPrefix, key, err)
	}
	return nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM dbi_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%s - delete %s: %w", pgLogPrefix, key, err)
	}
	return nil
}

// Has implements Store.
func (p *PostgresStore) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dbi_store WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s - has %s: %w", pgLogPrefix, key, err)
	}
	return exists, nil
}
