package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"glyphsweep/internal/scrub"
)

func newTestDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func modified(path string, removed int, before, after int64) scrub.Result {
	return scrub.Result{Path: path, Status: scrub.Modified, Removed: removed, BytesBefore: before, BytesAfter: after}
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	db, err := NewHistoryDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}

	if err := db.RecordRewrite("run-1", false, modified("/docs/a.md", 1, 10, 6)); err != nil {
		t.Fatalf("Failed to record rewrite: %v", err)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaIdempotent verifies reopening an existing database works
func TestSchemaIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		db, err := NewHistoryDB(dbPath)
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		if err := db.RecordRewrite("run", false, modified("/a.md", 1, 4, 0)); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
		db.Close()
	}

	db, err := NewHistoryDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	recs, err := db.GetRecentRewrites(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records after reopen, got %d", len(recs))
	}
}

func TestRecordRewrite_Actions(t *testing.T) {
	db := newTestDB(t)

	failed := scrub.Result{Path: "/docs/bad.md", Status: scrub.Failed, Err: errors.New("permission denied")}
	if err := db.RecordRewrite("run-1", false, modified("/docs/a.md", 2, 20, 12)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRewrite("run-1", true, modified("/docs/b.md", 1, 10, 6)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRewrite("run-1", false, failed); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		action string
		path   string
	}{
		{ActionModified, "/docs/a.md"},
		{ActionDryRun, "/docs/b.md"},
		{ActionError, "/docs/bad.md"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			recs, err := db.GetRewritesByAction(tt.action, 10)
			if err != nil {
				t.Fatalf("GetRewritesByAction failed: %v", err)
			}
			if len(recs) != 1 || recs[0].Path != tt.path {
				t.Fatalf("unexpected records: %+v", recs)
			}
			if recs[0].RunID != "run-1" {
				t.Errorf("RunID = %q", recs[0].RunID)
			}
			if recs[0].FileName != filepath.Base(tt.path) {
				t.Errorf("FileName = %q", recs[0].FileName)
			}
		})
	}

	errs, _ := db.GetRewritesByAction(ActionError, 10)
	if errs[0].ErrorMessage != "permission denied" {
		t.Errorf("ErrorMessage = %q", errs[0].ErrorMessage)
	}
}

func TestGetRewritesByPath(t *testing.T) {
	db := newTestDB(t)
	for _, p := range []string{"/repo/docs/a.md", "/repo/docs/b.md", "/repo/scripts/run.sh"} {
		if err := db.RecordRewrite("run", false, modified(p, 1, 4, 0)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := db.GetRewritesByPath("/repo/docs/%", 10)
	if err != nil {
		t.Fatalf("GetRewritesByPath failed: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 docs records, got %d", len(recs))
	}

	recent, err := db.GetRecentRewrites(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Path != "/repo/scripts/run.sh" {
		t.Errorf("unexpected recent records: %+v", recent)
	}
}

func TestRecordRun_AndStats(t *testing.T) {
	db := newTestDB(t)

	real := &scrub.Summary{
		RunID: "run-real", Root: "/repo", Started: time.Now().Add(-time.Minute),
		Duration: 1500 * time.Millisecond, Examined: 3, Modified: 1, Removed: 2,
	}
	dry := &scrub.Summary{
		RunID: "run-dry", Root: "/repo", Started: time.Now(), DryRun: true,
		Examined: 3, Modified: 2, Failed: 1, Removed: 4,
	}
	for _, s := range []*scrub.Summary{real, dry} {
		if err := db.RecordRun(s); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}
	if err := db.RecordRewrite("run-real", false, modified("/repo/b.md", 2, 25, 17)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRewrite("run-dry", true, modified("/repo/c.md", 4, 30, 14)); err != nil {
		t.Fatal(err)
	}

	runs, err := db.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-dry" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if !runs[0].DryRun || runs[1].DryRun {
		t.Error("dry_run flag not round-tripped")
	}
	if runs[1].DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", runs[1].DurationMS)
	}

	stats, err := db.GetStats(7)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Runs != 2 || stats.FilesExamined != 6 || stats.FilesFailed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.FilesModified != 1 {
		t.Errorf("dry runs must not count as modified, got %d", stats.FilesModified)
	}
	if stats.GlyphsRemoved != 2 || stats.BytesSaved != 8 {
		t.Errorf("removed=%d saved=%d, want 2/8", stats.GlyphsRemoved, stats.BytesSaved)
	}
	if stats.ByAction[ActionModified] != 1 || stats.ByAction[ActionDryRun] != 1 {
		t.Errorf("ByAction = %v", stats.ByAction)
	}

	byRun, err := db.GetRewritesByRun("run-dry")
	if err != nil || len(byRun) != 1 {
		t.Errorf("GetRewritesByRun = %v, %v", byRun, err)
	}
}

func TestDeleteOldRecords(t *testing.T) {
	db := newTestDB(t)

	old := time.Now().AddDate(0, 0, -40)
	if _, err := db.db.Exec(`INSERT INTO rewrites (timestamp, run_id, action, path) VALUES (?, 'old', ?, '/old.md')`, old, ActionModified); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordRewrite("new", false, modified("/new.md", 1, 4, 0)); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}

	stats, err := db.GetDatabaseStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["total_rewrites"].(int64) != 1 {
		t.Errorf("total_rewrites = %v", stats["total_rewrites"])
	}
}

// TestConcurrentWrites verifies WAL mode handles concurrent writers
func TestConcurrentWrites(t *testing.T) {
	db := newTestDB(t)

	var wg sync.WaitGroup
	errCh := make(chan error, 50)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				path := fmt.Sprintf("/docs/w%d/f%d.md", worker, j)
				if err := db.RecordRewrite("run", false, modified(path, 1, 4, 0)); err != nil {
					errCh <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent write failed: %v", err)
	}

	recs, err := db.GetRecentRewrites(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 50 {
		t.Errorf("expected 50 records, got %d", len(recs))
	}
}
