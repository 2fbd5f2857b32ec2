package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eldtechnologies/carebot/internal/metrics"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// KV is a durable key/value byte store that survives restarts.
// MemoryStore, SQLiteStore, RedisStore and PostgresStore implement it.
type KV interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	SQLitePath  string
	RedisURL    string
	DatabaseURL string

	// SealKey, when set, encrypts every value at rest.
	SealKey string
}

// Open connects to the backend named in opts.
func Open(ctx context.Context, opts Options) (KV, error) {
	kv, err := openBackend(ctx, opts)
	if err != nil || opts.SealKey == "" {
		return kv, err
	}
	sealed, err := NewSealedStore(kv, opts.SealKey)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return sealed, nil
}

func openBackend(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, errors.New("store: redis backend requires REDIS_URL")
		}
		return NewRedisStore(ctx, opts.RedisURL)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("store: postgres backend requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}

// observe records the latency of one store operation.
func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
