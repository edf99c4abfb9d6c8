package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("InstallationIDIsStable", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		first, err := repo.InstallationID(ctx)
		if err != nil {
			t.Fatalf("InstallationID failed: %v", err)
		}
		if first == "" {
			t.Fatal("expected a generated installation id")
		}

		second, err := repo.InstallationID(ctx)
		if err != nil {
			t.Fatalf("InstallationID failed: %v", err)
		}
		if first != second {
			t.Errorf("installation id changed: %q then %q", first, second)
		}
	})

	t.Run("LoadWithoutSave", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		if _, err := repo.Load(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		cred := models.Credential{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: expires, UserID: "alice"}
		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.AccessToken != "access" || got.RefreshToken != "refresh" || got.UserID != "alice" {
			t.Errorf("unexpected credential: %+v", got)
		}
		if !got.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		expires := time.Now().Add(time.Hour)

		if err := repo.Save(ctx, models.Credential{AccessToken: "old", UserID: "alice", ExpiresAt: expires}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Save(ctx, models.Credential{AccessToken: "new", UserID: "alice", ExpiresAt: expires}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.AccessToken != "new" {
			t.Errorf("expected overwritten token, got %q", got.AccessToken)
		}
	})

	t.Run("SaveRejectsIncomplete", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		err := repo.Save(ctx, models.Credential{AccessToken: "access"})
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		if err := repo.Delete(ctx); err != nil {
			t.Fatalf("Delete with nothing saved failed: %v", err)
		}
		if err := repo.Save(ctx, models.Credential{AccessToken: "a", UserID: "u", ExpiresAt: time.Now()}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Delete(ctx); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Load(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after delete, got %v", err)
		}
	})
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordAndList", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		events := []models.RunEvent{
			{RunID: "run-1", UserID: "alice", ClientInfo: "rsc/test", Timestamp: base},
			{RunID: "run-1", UserID: "alice", Timestamp: base.Add(time.Second)},
			{RunID: "run-2", UserID: "bob", Timestamp: base},
		}
		for _, e := range events {
			if err := repo.RecordEvent(ctx, e); err != nil {
				t.Fatalf("RecordEvent failed: %v", err)
			}
		}

		got, err := repo.ListByRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("ListByRun failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
		if got[0].ID == "" || got[0].ID == got[1].ID {
			t.Errorf("expected distinct generated ids, got %q and %q", got[0].ID, got[1].ID)
		}
		if got[0].ClientInfo != "rsc/test" {
			t.Errorf("expected client info to round trip, got %q", got[0].ClientInfo)
		}
		if !got[0].Timestamp.Equal(base) {
			t.Errorf("expected first event at %v, got %v", base, got[0].Timestamp)
		}
	})

	t.Run("FillsTimestamp", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))

		if err := repo.RecordEvent(ctx, models.RunEvent{RunID: "run-1"}); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
		got, err := repo.ListByRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("ListByRun failed: %v", err)
		}
		if len(got) != 1 || got[0].Timestamp.IsZero() {
			t.Errorf("expected one timestamped event, got %+v", got)
		}
	})

	t.Run("RequiresRunID", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))

		if err := repo.RecordEvent(ctx, models.RunEvent{UserID: "alice"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("SaveRunningThenFinished", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		running := models.RunRecord{RunID: "run-1", UserID: "alice", Status: models.RunStatusRunning, StartedAt: start}
		if err := repo.SaveRun(ctx, running); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err := repo.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.RunStatusRunning || !got.FinishedAt.IsZero() || got.TargetID != "" {
			t.Errorf("unexpected running record: %+v", got)
		}

		finished := running
		finished.Status = models.RunStatusSucceeded
		finished.TargetID = "pl-target"
		finished.PlaylistsScanned = 2
		finished.TracksCollected = 124
		finished.TracksWritten = 124
		finished.BatchesWritten = 2
		finished.FinishedAt = start.Add(90 * time.Second)
		if err := repo.SaveRun(ctx, finished); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err = repo.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.RunStatusSucceeded || got.TargetID != "pl-target" {
			t.Errorf("unexpected finished record: %+v", got)
		}
		if got.TracksWritten != 124 || got.BatchesWritten != 2 || got.PlaylistsScanned != 2 {
			t.Errorf("counters did not round trip: %+v", got)
		}
		if got.Duration() != 90*time.Second {
			t.Errorf("expected 90s duration, got %v", got.Duration())
		}
	})

	t.Run("SaveRunKeepsError", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		record := models.RunRecord{
			RunID: "run-1", UserID: "alice", Status: models.RunStatusFailed,
			Error: "batch 2: rejected", StartedAt: start, FinishedAt: start.Add(time.Second),
		}
		if err := repo.SaveRun(ctx, record); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err := repo.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Error != "batch 2: rejected" {
			t.Errorf("expected error message to round trip, got %q", got.Error)
		}
	})

	t.Run("SaveRunValidates", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		if err := repo.SaveRun(ctx, models.RunRecord{Status: models.RunStatusRunning, StartedAt: start}); err == nil {
			t.Error("expected validation error for missing run id")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		if _, err := repo.Get(ctx, "nope"); err == nil {
			t.Error("expected error for missing run")
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		for i, id := range []string{"run-a", "run-b", "run-c"} {
			record := models.RunRecord{
				RunID: id, UserID: "alice", Status: models.RunStatusSucceeded,
				StartedAt: start.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.SaveRun(ctx, record); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}
		}

		all, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 || all[0].RunID != "run-c" || all[2].RunID != "run-a" {
			t.Errorf("unexpected order: %+v", all)
		}

		limited, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(limited) != 2 || limited[0].RunID != "run-c" {
			t.Errorf("unexpected limited list: %+v", limited)
		}
	})
}
