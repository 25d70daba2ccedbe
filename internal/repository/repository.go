// Package repository selects and opens the configured storage backend.
package repository

import (
	"context"
	"fmt"

	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/repository/postgres"
	"github.com/msomdec/usergraph/internal/repository/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options describes how to reach the database.
type Options struct {
	Driver string
	// URL is a file path for SQLite or a connection string for PostgreSQL.
	URL  string
	Pool postgres.PoolOptions
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (domain.Database, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: database URL is required", domain.ErrInvalidInput)
	}

	switch opts.Driver {
	case DriverSQLite:
		db, err := sqlite.New(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	case DriverPostgres:
		db, err := postgres.New(ctx, opts.URL, opts.Pool)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", domain.ErrInvalidInput, opts.Driver)
	}
}
