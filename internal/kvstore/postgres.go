package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists collections as rows in the kv_collections table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store. The kv_collections
// table is created by migrations.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the collection's document, or nil if it was never written.
func (s *PostgresStore) Get(ctx context.Context, collection string) ([]byte, error) {
	var data []byte
	query := `SELECT data FROM kv_collections WHERE collection = $1`

	err := s.pool.QueryRow(ctx, query, collection).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", collection, err)
	}

	return data, nil
}

// Set replaces the collection's document.
func (s *PostgresStore) Set(ctx context.Context, collection string, data []byte) error {
	query := `
		INSERT INTO kv_collections (collection, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query, collection, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set collection %s: %w", collection, err)
	}

	return nil
}

var _ Store = (*PostgresStore)(nil)
