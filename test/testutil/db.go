package testutil

import (
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/xxxsen/ragline/internal/repo"
)

// OpenTestDB opens a throwaway sqlite catalog with migrations applied.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	conn, err := repo.Open(filepath.Join(t.TempDir(), "ragline.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.ApplyMigrations(conn, migrationsDir(t)); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate migrations dir")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
