package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpenProject_CreatesDirectory(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root)
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer db.Close()

	if db.Path() != filepath.Join(root, ".gauntlet", "state.db") {
		t.Errorf("unexpected path %s", db.Path())
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("query version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestIndex_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := db.UpsertIndex(IndexEntry{FeatureID: "auth.login", LatestRun: 1, Verdict: "fail", CommitHash: "abc", UpdatedAt: now, TotalRuns: 1}); err != nil {
		t.Fatalf("UpsertIndex failed: %v", err)
	}
	if err := db.UpsertIndex(IndexEntry{FeatureID: "auth.login", LatestRun: 2, Verdict: "pass", CommitHash: "def", UpdatedAt: now.Add(time.Hour), TotalRuns: 2, PassRuns: 1}); err != nil {
		t.Fatalf("UpsertIndex failed: %v", err)
	}

	got, err := db.GetIndex("auth.login")
	if err != nil {
		t.Fatalf("GetIndex failed: %v", err)
	}
	if got.LatestRun != 2 || got.Verdict != "pass" || got.CommitHash != "def" || got.TotalRuns != 2 || got.PassRuns != 1 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}
}

func TestIndex_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetIndex("nope"); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("expected ErrNotIndexed, got %v", err)
	}
}

func TestIndex_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := db.UpsertIndex(IndexEntry{FeatureID: id, LatestRun: 1, Verdict: "pass"}); err != nil {
			t.Fatalf("UpsertIndex(%s): %v", id, err)
		}
	}
	if err := db.DeleteIndex("b"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}

	entries, err := db.ListIndex()
	if err != nil {
		t.Fatalf("ListIndex failed: %v", err)
	}
	if len(entries) != 2 || entries[0].FeatureID != "a" || entries[1].FeatureID != "c" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestIndex_RejectsEmptyID(t *testing.T) {
	db := setupTestDB(t)
	if err := db.UpsertIndex(IndexEntry{}); err == nil {
		t.Error("expected error for empty feature id")
	}
}
