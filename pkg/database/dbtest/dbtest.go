// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Otise/opendatakit.build/config"
	"github.com/Otise/opendatakit.build/pkg/database"
)

// New returns a migrated SQLite database living in t.TempDir.
// It is closed when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Connect(ctx, config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
