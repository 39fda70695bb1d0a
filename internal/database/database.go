package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"glyphsweep/internal/scrub"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded in the rewrites table
const (
	ActionModified = "MODIFIED"
	ActionDryRun   = "DRY_RUN"
	ActionError    = "ERROR"
)

// HistoryDB manages the SQLite database for rewrite history
type HistoryDB struct {
	db *sql.DB
}

// RewriteRecord represents a single rewrite (or failed rewrite) event
type RewriteRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Action       string    `json:"action"`
	Path         string    `json:"path"`
	FileName     string    `json:"file_name"`
	Removed      int       `json:"removed"`
	BytesBefore  int64     `json:"bytes_before"`
	BytesAfter   int64     `json:"bytes_after"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// RunRecord represents one completed sweep
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Root       string    `json:"root"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Examined   int       `json:"examined"`
	Modified   int       `json:"modified"`
	Failed     int       `json:"failed"`
	Removed    int       `json:"removed"`
	DryRun     bool      `json:"dry_run"`
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// SQLite allows a single writer; serialize inside the process
	db.SetMaxOpenConns(1)

	// Ensures the database file is created if it doesn't exist
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// WAL lets the history CLI read while a watch-mode sweep writes
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}

	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		examined INTEGER NOT NULL,
		modified INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		dry_run BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rewrites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		run_id TEXT NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		removed INTEGER NOT NULL DEFAULT 0,
		bytes_before INTEGER NOT NULL DEFAULT 0,
		bytes_after INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_rewrites_timestamp ON rewrites(timestamp);
	CREATE INDEX IF NOT EXISTS idx_rewrites_action ON rewrites(action);
	CREATE INDEX IF NOT EXISTS idx_rewrites_path ON rewrites(path);
	CREATE INDEX IF NOT EXISTS idx_rewrites_run_id ON rewrites(run_id);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// actionFor maps a file result onto a history action
func actionFor(dryRun bool, r scrub.Result) string {
	if r.Status == scrub.Failed {
		return ActionError
	}
	if dryRun {
		return ActionDryRun
	}
	return ActionModified
}

// RecordRewrite inserts a rewrite event into the database
func (d *HistoryDB) RecordRewrite(runID string, dryRun bool, r scrub.Result) error {
	var errMsg sql.NullString
	if r.Err != nil {
		errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
	}

	_, err := d.db.Exec(`
	INSERT INTO rewrites (
		timestamp, run_id, action, path, file_name,
		removed, bytes_before, bytes_after, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		time.Now(),
		runID,
		actionFor(dryRun, r),
		r.Path,
		filepath.Base(r.Path),
		r.Removed,
		r.BytesBefore,
		r.BytesAfter,
		errMsg,
	)
	return err
}

// RecordRun inserts a completed run
func (d *HistoryDB) RecordRun(s *scrub.Summary) error {
	_, err := d.db.Exec(`
	INSERT OR REPLACE INTO runs (
		run_id, root, started_at, duration_ms,
		examined, modified, failed, removed, dry_run
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.RunID,
		s.Root,
		s.Started,
		s.Duration.Milliseconds(),
		s.Examined,
		s.Modified,
		s.Failed,
		s.Removed,
		s.DryRun,
	)
	return err
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *HistoryDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRewrites, totalRuns int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM rewrites").Scan(&totalRewrites); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalRuns); err != nil {
		return nil, err
	}
	stats["total_rewrites"] = totalRewrites
	stats["total_runs"] = totalRuns

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	return stats, nil
}
