// Package testdb opens throwaway migrated databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/shpitdev/crm-enricher/internal/database"
	"github.com/shpitdev/crm-enricher/internal/persistence"
)

// New returns an in-memory SQLite database with all tables migrated. It is closed
// when the test ends.
func New(t testing.TB) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:", nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
