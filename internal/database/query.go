package database

import (
	"database/sql"
	"time"
)

const rewriteColumns = `id, timestamp, run_id, action, path, file_name,
	       removed, bytes_before, bytes_after, error_message`

// GetRecentRewrites returns the N most recent rewrite events
func (d *HistoryDB) GetRecentRewrites(limit int) ([]RewriteRecord, error) {
	query := `
	SELECT ` + rewriteColumns + `
	FROM rewrites
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryRewrites(query, limit)
}

// GetRewritesByAction returns events filtered by action type
func (d *HistoryDB) GetRewritesByAction(action string, limit int) ([]RewriteRecord, error) {
	query := `
	SELECT ` + rewriteColumns + `
	FROM rewrites
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryRewrites(query, action, limit)
}

// GetRewritesByPath returns events whose path matches a LIKE pattern
func (d *HistoryDB) GetRewritesByPath(pathPattern string, limit int) ([]RewriteRecord, error) {
	query := `
	SELECT ` + rewriteColumns + `
	FROM rewrites
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryRewrites(query, pathPattern, limit)
}

// GetRewritesByRun returns all events recorded for one run
func (d *HistoryDB) GetRewritesByRun(runID string) ([]RewriteRecord, error) {
	query := `
	SELECT ` + rewriteColumns + `
	FROM rewrites
	WHERE run_id = ?
	ORDER BY id ASC
	`

	return d.queryRewrites(query, runID)
}

// GetRecentRuns returns the N most recent runs
func (d *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.db.Query(`
	SELECT run_id, root, started_at, duration_ms, examined, modified, failed, removed, dry_run
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.Root, &r.StartedAt, &r.DurationMS,
			&r.Examined, &r.Modified, &r.Failed, &r.Removed, &r.DryRun,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetCountByAction returns count of events grouped by action since a time
func (d *HistoryDB) GetCountByAction(since time.Time) (map[string]int, error) {
	rows, err := d.db.Query(`
	SELECT action, COUNT(*)
	FROM rewrites
	WHERE timestamp >= ?
	GROUP BY action
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}

	return counts, rows.Err()
}

// HistoryStats holds aggregated statistics
type HistoryStats struct {
	Runs          int            `json:"runs"`
	FilesExamined int            `json:"files_examined"`
	FilesModified int            `json:"files_modified"`
	FilesFailed   int            `json:"files_failed"`
	GlyphsRemoved int            `json:"glyphs_removed"`
	BytesSaved    int64          `json:"bytes_saved"`
	ByAction      map[string]int `json:"by_action"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
}

// GetStats returns aggregated statistics for the last N days
func (d *HistoryDB) GetStats(days int) (*HistoryStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &HistoryStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(examined), 0),
			COALESCE(SUM(CASE WHEN dry_run THEN 0 ELSE modified END), 0),
			COALESCE(SUM(failed), 0)
		FROM runs
		WHERE started_at >= ?
	`, since).Scan(&stats.Runs, &stats.FilesExamined, &stats.FilesModified, &stats.FilesFailed)
	if err != nil {
		return nil, err
	}

	// Only real rewrites count toward removed glyphs and saved bytes
	err = d.db.QueryRow(`
		SELECT
			COALESCE(SUM(removed), 0),
			COALESCE(SUM(bytes_before - bytes_after), 0)
		FROM rewrites
		WHERE action = ? AND timestamp >= ?
	`, ActionModified, since).Scan(&stats.GlyphsRemoved, &stats.BytesSaved)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetCountByAction(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM rewrites WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := d.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryRewrites is a helper function to execute queries and scan results
func (d *HistoryDB) queryRewrites(query string, args ...interface{}) ([]RewriteRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RewriteRecord
	for rows.Next() {
		var r RewriteRecord
		var fileName, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.RunID, &r.Action, &r.Path, &fileName,
			&r.Removed, &r.BytesBefore, &r.BytesAfter, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.FileName = fileName.String
		r.ErrorMessage = errMsg.String
		records = append(records, r)
	}

	return records, rows.Err()
}
