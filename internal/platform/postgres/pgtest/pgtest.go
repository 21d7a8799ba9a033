// Package pgtest gives tests a migrated, empty database. Tests using it are
// skipped unless TEST_DB_DSN names a disposable database.
package pgtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/platform/postgres"
)

const tables = `users, categories, books, members, borrows, digital_assets, asset_downloads,
	system_settings, system_logs, notifications, revoked_tokens`

// Open connects to TEST_DB_DSN, applies every migration and truncates all
// tables. The pool is closed when the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	pool, err := postgres.Open(ctx, cfg)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.UpContext(ctx, db, migrationsDir()))

	_, err = pool.Exec(ctx, `TRUNCATE `+tables+` RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	// internal/platform/postgres/pgtest -> repo root
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "db", "migrations")
}
