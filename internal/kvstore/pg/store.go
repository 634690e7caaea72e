// Package pg is a Store on Postgres for hosted deployments of the sync engine.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/kvstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opTimeout = 2 * time.Second

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Connect parses dsn and opens a small pool sized for a single wallet process.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return New(pool), nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS wallet_kv (
  key        TEXT PRIMARY KEY,
  value      BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.pool.QueryRow(cctx, `SELECT value FROM wallet_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := `
INSERT INTO wallet_kv(key, value) VALUES ($1, $2)
ON CONFLICT(key) DO UPDATE SET
  value      = EXCLUDED.value,
  updated_at = now()
`
	if _, err := s.pool.Exec(cctx, q, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.pool.Exec(cctx, `DELETE FROM wallet_kv WHERE key = $1`, key)
	return err
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(cctx, `SELECT key FROM wallet_kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE wallet_kv`)
	return err
}

func (s *Store) Close() { s.pool.Close() }

var _ kvstore.Store = (*Store)(nil)
