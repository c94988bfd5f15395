// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"database/sql"
	"testing"

	"github.com/username/ayna/backend/src/database"
	"github.com/username/ayna/backend/src/logger"
)

// New opens a fresh in-memory sqlite database with the full schema applied.
func New(t *testing.T) *sql.DB {
	t.Helper()

	if logger.L == nil {
		logger.InitLogger("error")
	}

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db, "ayna_test"); err != nil {
		t.Fatalf("migrate in-memory database: %v", err)
	}
	return db
}
