package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/gmcoin/mintworker/internal/infra/storage"
)

// Store implements storage.Store on the epoch_kv table.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// StartMetricsCollector starts pool-stat sampling on the underlying database.
func (s *Store) StartMetricsCollector(ctx context.Context) {
	s.db.StartMetricsCollector(ctx)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM epoch_kv WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epoch_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM epoch_kv WHERE key = ANY($1::text[])`, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		`SELECT key FROM epoch_kv WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("keys failed: %w", err)
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM epoch_kv WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	return nil
}
