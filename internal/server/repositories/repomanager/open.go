package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/filex"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// IsPostgresDSN reports whether dsn points at PostgreSQL rather than a
// SQLite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the store named by dsn, applies migrations and returns
// the handle together with the matching manager. The caller owns the
// returned *sql.DB and must close it.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	if IsPostgresDSN(dsn) {
		return open(ctx, "pgx", dsn, NewPostgresRepositoryManager(), nil)
	}

	if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
		if err := filex.EnsureParentDir(dsn); err != nil {
			return nil, nil, fmt.Errorf("db dir: %w", err)
		}
	}
	return open(ctx, "sqlite", dsn, NewSQLiteRepositoryManager(), func(db *sql.DB) error {
		// SQLite has one writer; :memory: databases also live on one connection.
		db.SetMaxOpenConns(1)
		for _, p := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
		return nil
	})
}

func open(ctx context.Context, driver, dsn string, m RepositoryManager, prepare func(*sql.DB) error) (*sql.DB, RepositoryManager, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}

	if prepare != nil {
		if err := prepare(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db prepare: %w", err)
		}
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db migrations: %w", err)
	}

	return db, m, nil
}
