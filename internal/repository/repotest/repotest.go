// Package repotest provides migrated throwaway databases for tests.
package repotest

import (
	"path/filepath"
	"testing"

	"agentwatch/internal/repository"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap/zaptest"
)

// OpenDB returns a migrated SQLite database in the test's temp dir.
func OpenDB(t testing.TB) *sqlx.DB {
	t.Helper()
	logger := zaptest.NewLogger(t)

	path := filepath.Join(t.TempDir(), "agentwatch.db")
	db, err := repository.Open(repository.DriverSQLite, path, logger)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(db, logger); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Open returns all repositories over a fresh test database.
func Open(t testing.TB) *repository.Repositories {
	t.Helper()
	return repository.New(OpenDB(t), zaptest.NewLogger(t))
}
