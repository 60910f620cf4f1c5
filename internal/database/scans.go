package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrScanFinished is returned when closing a scan history row twice.
var ErrScanFinished = errors.New("database: scan already finished")

const scanColumns = `id, folder_path, scan_type, folders, start_time, end_time,
	files_added, files_updated, files_removed, status`

// BeginScan opens a scan history row in the running state.
func (d *Database) BeginScan(ctx context.Context, folderPath string, folders []string, scanType string) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("begin_scan", start, err) }()

	if folders == nil {
		folders = []string{}
	}
	encoded, err := json.Marshal(folders)
	if err != nil {
		return 0, err
	}
	if scanType == "" {
		scanType = ScanTypeFull
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO scan_history (folder_path, scan_type, folders, start_time, status)
		VALUES (?, ?, ?, ?, ?)
	`, folderPath, scanType, string(encoded), time.Now().Unix(), ScanRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to record scan start: %w", err)
	}
	return result.LastInsertId()
}

// FinishScan closes a running scan history row with its final counts.
func (d *Database) FinishScan(ctx context.Context, id int64, counts ScanCounts, status ScanStatus) (err error) {
	start := time.Now()
	defer func() { recordQuery("finish_scan", start, err) }()

	if status != ScanCompleted && status != ScanFailed {
		return fmt.Errorf("database: invalid final scan status %q", status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE scan_history
		SET end_time = ?, files_added = ?, files_updated = ?, files_removed = ?, status = ?
		WHERE id = ? AND status = ?
	`, time.Now().Unix(), counts.Added, counts.Updated, counts.Removed, status, id, ScanRunning)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM scan_history WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrScanFinished
	}
	return ErrNotFound
}

// GetScan retrieves one scan history row.
func (d *Database) GetScan(ctx context.Context, id int64) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("get_scan", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+scanColumns+" FROM scan_history WHERE id = ?", id)
	rec, err = scanScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// RecentScans returns up to limit scan history rows, newest first.
func (d *Database) RecentScans(ctx context.Context, limit int) (recs []ScanRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("recent_scans", start, err) }()

	if limit <= 0 {
		limit = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+scanColumns+" FROM scan_history ORDER BY start_time DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanScanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanScanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		rec     ScanRecord
		folders string
		started int64
		ended   sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.FolderPath, &rec.ScanType, &folders, &started, &ended,
		&rec.Counts.Added, &rec.Counts.Updated, &rec.Counts.Removed, &rec.Status,
	)
	if err != nil {
		return nil, err
	}

	rec.StartTime = time.Unix(started, 0)
	rec.EndTime = timeFromNull(ended)
	if err := json.Unmarshal([]byte(folders), &rec.Folders); err != nil {
		rec.Folders = nil
	}
	return &rec, nil
}
