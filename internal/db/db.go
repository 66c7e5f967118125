// Package db implements the secondary Postgres-backed archival store: a
// durable record of every position, order, and session this process has
// ever touched, independent of (and never read back into) the live
// in-memory state the trailing engine and scheduler actually trade
// against. Nothing in the trading path blocks on this store — it exists
// for audit, post-mortem, and historical reporting.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/ees/internal/secrets"
)

// pgxIface is the subset of *pgxpool.Pool's surface this store calls.
// Abstracting it lets tests substitute pgxmock.PgxPoolIface (the teacher
// dependency github.com/pashagolub/pgxmock/v3) without a real database.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB wraps the PostgreSQL connection pool backing the archival store.
type DB struct {
	pool    pgxIface
	rawPool *pgxpool.Pool // nil when pool was substituted by a test mock
	log     zerolog.Logger
}

// New opens the archival store's connection pool. The connection string
// is read from the secret named databaseURLSecret via store, mirroring
// the pattern the rest of this system uses for broker/provider
// credentials rather than reading DATABASE_URL from the environment
// directly.
func New(ctx context.Context, store secrets.Store, databaseURLSecret string, log zerolog.Logger) (*DB, error) {
	raw, err := store.Get(ctx, databaseURLSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to load database connection string: %w", err)
	}
	databaseURL := string(raw)
	if databaseURL == "" {
		return nil, fmt.Errorf("database connection string secret %q is empty", databaseURLSecret)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("archival database connection pool created")
	return &DB{pool: pool, rawPool: pool, log: log}, nil
}

// NewWithPool wraps an already-constructed pool (a pgxmock.PgxPoolIface
// in tests, a *pgxpool.Pool in any other caller) without dialing.
func NewWithPool(pool pgxIface, log zerolog.Logger) *DB {
	return &DB{pool: pool, log: log}
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.log.Info().Msg("archival database connection pool closed")
	}
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	if db.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}
	return db.pool.Ping(ctx)
}

// Pool returns the underlying *pgxpool.Pool opened by New.
// It is nil when the store was constructed via NewWithPool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.rawPool
}
