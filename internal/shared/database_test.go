package shared

import (
	"path/filepath"
	"testing"

	tu "github.com/desertthunder/rsc/internal/testing"
)

func TestNewDatabase(t *testing.T) {
	t.Run("file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rsc.db")
		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("NewDatabase failed: %v", err)
		}
		defer db.Close()

		ConfigureDatabase(db, 4, 2)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}
		if stats := db.Stats(); stats.MaxOpenConnections != 4 {
			t.Errorf("expected 4 max open connections, got %d", stats.MaxOpenConnections)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("memory database uses one connection", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewDatabase failed: %v", err)
		}
		defer db.Close()

		if stats := db.Stats(); stats.MaxOpenConnections != 1 {
			t.Errorf("expected 1 max open connection, got %d", stats.MaxOpenConnections)
		}
	})
}
