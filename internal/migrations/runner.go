// Package migrations embeds the schema for every supported database
// dialect and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect selects which embedded migration set to apply.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) gooseDialect() (goose.Dialect, error) {
	switch d {
	case SQLite:
		return goose.DialectSQLite3, nil
	case Postgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// FS returns the migration files for the dialect, rooted at the dialect
// directory.
func FS(d Dialect) (fs.FS, error) {
	if _, err := d.gooseDialect(); err != nil {
		return nil, err
	}
	return fs.Sub(files, string(d))
}

// NewProvider builds a goose provider over the embedded migrations for d.
func NewProvider(db *sql.DB, d Dialect) (*goose.Provider, error) {
	dialect, err := d.gooseDialect()
	if err != nil {
		return nil, err
	}
	fsys, err := FS(d)
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", d, err)
	}
	return goose.NewProvider(dialect, db, fsys)
}

// Run applies all unapplied migrations for the dialect. Applied versions are
// tracked by goose in the goose_db_version table, so Run is idempotent.
func Run(ctx context.Context, db *sql.DB, d Dialect) error {
	provider, err := NewProvider(db, d)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if len(results) == 0 {
		slog.DebugContext(ctx, "migrations up to date", "dialect", string(d))
	}
	for _, r := range results {
		slog.InfoContext(ctx, "migration applied",
			"dialect", string(d),
			"version", r.Source.Version,
			"duration", r.Duration,
		)
	}

	return nil
}
