package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps values in a PostgreSQL table, for installs that share
// one database across devices.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS carebot_kv (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get retrieves the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer observe(BackendPostgres, "get", time.Now())

	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM carebot_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set upserts the value stored under key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	defer observe(BackendPostgres, "set", time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO carebot_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

// Remove deletes key.
func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	defer observe(BackendPostgres, "remove", time.Now())

	_, err := s.pool.Exec(ctx, `DELETE FROM carebot_kv WHERE key = $1`, key)
	return err
}
