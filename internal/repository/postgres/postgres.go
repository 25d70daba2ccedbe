// Package postgres implements the domain repositories on PostgreSQL.
//
// Connections are managed by a pgx pool; repositories talk to it through
// database/sql (pgx stdlib) so the same pool also serves goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/migrations"
)

// PoolOptions tunes the pgx connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DB owns a pgx pool and the database/sql handle layered on it.
type DB struct {
	Pool  *pgxpool.Pool
	SqlDB *sql.DB
	users *UserRepository
}

// New connects to databaseURL and verifies the connection with a ping.
func New(ctx context.Context, databaseURL string, opts PoolOptions) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{
		Pool:  pool,
		SqlDB: sqlDB,
		users: NewUserRepository(sqlDB),
	}, nil
}

// Migrate applies the embedded PostgreSQL schema.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB, migrations.Postgres)
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Users returns the user repository.
func (db *DB) Users() domain.UserRepository {
	return db.users
}

// Close closes the database/sql handle and then the pool beneath it.
func (db *DB) Close() error {
	err := db.SqlDB.Close()
	db.Pool.Close()
	return err
}
