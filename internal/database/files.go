package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-index/internal/metadata"
)

const defaultRandomLimit = 10

const recordColumns = `f.id, f.path, f.filename, f.folder, f.file_type, f.file_size,
	f.modified_time, f.created_time, f.last_scanned, f.is_favorite, f.rating, f.rated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type recordRow struct {
	rec         MediaRecord
	modTime     int64
	createdTime sql.NullInt64
	lastScanned int64
	ratedAt     sql.NullInt64
}

func (r *recordRow) dest() []any {
	return []any{
		&r.rec.ID, &r.rec.Path, &r.rec.Filename, &r.rec.Folder, &r.rec.Type, &r.rec.Size,
		&r.modTime, &r.createdTime, &r.lastScanned, &r.rec.IsFavorite, &r.rec.Rating, &r.ratedAt,
	}
}

func (r *recordRow) record() MediaRecord {
	rec := r.rec
	rec.ModTime = time.Unix(r.modTime, 0)
	rec.LastScanned = time.Unix(r.lastScanned, 0)
	rec.CreatedTime = timeFromNull(r.createdTime)
	rec.RatedAt = timeFromNull(r.ratedAt)
	return rec
}

// UpsertFile inserts or replaces the record for rec.Path and reports whether
// the path was new. Every scanned column is overwritten; the user-owned
// favorite flag and rating are preserved. rec.ID and the preserved fields are
// filled in from the stored row.
func (d *Database) UpsertFile(ctx context.Context, rec *MediaRecord) (added bool, err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_file", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing int64
	switch scanErr := tx.QueryRowContext(ctx, "SELECT id FROM media_files WHERE path = ?", rec.Path).Scan(&existing); {
	case errors.Is(scanErr, sql.ErrNoRows):
		added = true
	case scanErr != nil:
		return false, fmt.Errorf("failed to look up %s: %w", rec.Path, scanErr)
	}

	if rec.LastScanned.IsZero() {
		rec.LastScanned = time.Now()
	}

	query := `
	INSERT INTO media_files (path, filename, folder, file_type, file_size, modified_time, created_time, last_scanned)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		filename = excluded.filename,
		folder = excluded.folder,
		file_type = excluded.file_type,
		file_size = excluded.file_size,
		modified_time = excluded.modified_time,
		created_time = excluded.created_time,
		last_scanned = excluded.last_scanned
	RETURNING id, is_favorite, rating, rated_at
	`

	var ratedAt sql.NullInt64
	err = tx.QueryRowContext(ctx, query,
		rec.Path,
		rec.Filename,
		rec.Folder,
		rec.Type,
		rec.Size,
		rec.ModTime.Unix(),
		nullTime(rec.CreatedTime),
		rec.LastScanned.Unix(),
	).Scan(&rec.ID, &rec.IsFavorite, &rec.Rating, &ratedAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
	}
	rec.RatedAt = timeFromNull(ratedAt)

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return added, nil
}

// GetFileByPath retrieves a single record, including its metadata fragment.
func (d *Database) GetFileByPath(ctx context.Context, path string) (rec *MediaRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("get_file", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + `, ` + fragmentColumns + `
	FROM media_files f
	LEFT JOIN exif_data e ON e.file_id = f.id
	WHERE f.path = ?`

	var r recordRow
	var fr fragmentRow
	err = d.db.QueryRowContext(ctx, query, path).Scan(append(r.dest(), fr.dest()...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out := r.record()
	out.Metadata = fr.fragment()
	return &out, nil
}

// CountFiles returns the number of indexed files.
func (d *Database) CountFiles(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_files").Scan(&n)
	return n, err
}

// SetRating stores the user rating (0-5, 0 = unrated) for path.
func (d *Database) SetRating(ctx context.Context, path string, rating int) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_rating", start, err) }()

	if !metadata.ValidRating(rating) {
		return ErrInvalidRating
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ratedAt any
	if rating > 0 {
		ratedAt = time.Now().Unix()
	}

	result, err := d.db.ExecContext(ctx,
		"UPDATE media_files SET rating = ?, rated_at = ? WHERE path = ?",
		rating, ratedAt, path,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetFavorite sets or clears the favorite flag for path.
func (d *Database) SetFavorite(ctx context.Context, path string, favorite bool) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE media_files SET is_favorite = ? WHERE path = ?",
		favorite, path,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// RandomFiles returns a random sample of records matching opts, each with
// its metadata fragment when one exists.
func (d *Database) RandomFiles(ctx context.Context, opts RandomOptions) (recs []MediaRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("random_files", start, err) }()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRandomLimit
	}
	if limit > MaxRandomLimit {
		limit = MaxRandomLimit
	}

	var where []string
	var args []any

	if folder := strings.TrimRight(opts.Folder, "/"); folder != "" {
		where = append(where, `(f.folder = ? OR f.folder LIKE ? ESCAPE '\')`)
		args = append(args, folder, escapeLike(folder)+"/%")
	}
	if opts.Type != "" {
		where = append(where, "f.file_type = ?")
		args = append(args, opts.Type)
	}
	if !opts.From.IsZero() {
		where = append(where, "COALESCE(e.date_taken, f.modified_time) >= ?")
		args = append(args, opts.From.Unix())
	}
	if !opts.To.IsZero() {
		where = append(where, "COALESCE(e.date_taken, f.modified_time) <= ?")
		args = append(args, opts.To.Unix())
	}

	query := `SELECT ` + recordColumns + `, ` + fragmentColumns + `
	FROM media_files f
	LEFT JOIN exif_data e ON e.file_id = f.id`
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY RANDOM() LIMIT ?"
	args = append(args, limit)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query random files: %w", err)
	}
	defer rows.Close()

	recs = make([]MediaRecord, 0, limit)
	for rows.Next() {
		var r recordRow
		var fr fragmentRow
		if err := rows.Scan(append(r.dest(), fr.dest()...)...); err != nil {
			return nil, err
		}
		rec := r.record()
		rec.Metadata = fr.fragment()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
