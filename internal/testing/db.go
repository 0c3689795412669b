// Package testing provides shared test helpers for fundfolio.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/vqtran/fundfolio/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB opens a migrated sqlite database in a per-test temp directory.
// The name selects the schema ("marketdata" or "results"). The returned
// cleanup closes the database; the file itself is removed with the test's
// temp dir.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("open test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("close test database %s: %v", name, err)
		}
	}
}
