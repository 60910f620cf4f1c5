package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is bumped whenever runMigrations gains a step.
const schemaVersion = 2

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("database: not found")
	// ErrInvalidRating is returned for ratings outside 0-5.
	ErrInvalidRating = errors.New("database: rating must be between 0 and 5")
)

// Database is the persistent record store for indexed media, extracted
// metadata, geocoding results and scan history. Every mutating call commits
// on its own; no transaction spans a scan.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. dbPath is the database FILE; its parent directory must exist and
// be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors while a scan
	// writes and the HTTP layer reads
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		folder TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		modified_time INTEGER NOT NULL,
		created_time INTEGER,
		last_scanned INTEGER NOT NULL,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
		rated_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_folder ON media_files(folder);
	CREATE INDEX IF NOT EXISTS idx_media_files_type ON media_files(file_type);
	CREATE INDEX IF NOT EXISTS idx_media_files_modified ON media_files(modified_time);
	CREATE INDEX IF NOT EXISTS idx_media_files_favorite ON media_files(is_favorite);

	-- One row per file with extractable embedded metadata
	CREATE TABLE IF NOT EXISTS exif_data (
		file_id INTEGER PRIMARY KEY,
		camera_make TEXT,
		camera_model TEXT,
		date_taken INTEGER,
		latitude REAL,
		longitude REAL,
		location_name TEXT,
		location_city TEXT,
		location_country TEXT,
		iso INTEGER,
		aperture REAL,
		shutter_speed TEXT,
		focal_length REAL,
		flash TEXT,
		rating INTEGER,
		FOREIGN KEY (file_id) REFERENCES media_files(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_exif_date_taken ON exif_data(date_taken);
	CREATE INDEX IF NOT EXISTS idx_exif_location ON exif_data(latitude, longitude);

	-- Permanent reverse-geocoding results keyed by rounded coordinates
	CREATE TABLE IF NOT EXISTS geocode_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		precision_level INTEGER NOT NULL,
		location_name TEXT NOT NULL DEFAULT '',
		location_city TEXT NOT NULL DEFAULT '',
		location_country TEXT NOT NULL DEFAULT '',
		cached_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(latitude, longitude, precision_level)
	);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_path TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		files_added INTEGER NOT NULL DEFAULT 0,
		files_updated INTEGER NOT NULL DEFAULT 0,
		files_removed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE INDEX IF NOT EXISTS idx_scan_history_status ON scan_history(status, end_time);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies schema changes made after the first release.
func (d *Database) runMigrations(ctx context.Context) error {
	version, err := d.schemaVersion(ctx)
	if err != nil {
		return err
	}

	// Migration 2: scan_history gains scan_type and the requested folder list
	if version < 2 {
		for _, col := range []struct{ name, ddl string }{
			{"scan_type", "ALTER TABLE scan_history ADD COLUMN scan_type TEXT NOT NULL DEFAULT 'full'"},
			{"folders", "ALTER TABLE scan_history ADD COLUMN folders TEXT NOT NULL DEFAULT '[]'"},
		} {
			var exists bool
			if err := d.db.QueryRowContext(ctx, `
				SELECT COUNT(*) > 0
				FROM pragma_table_info('scan_history')
				WHERE name = ?
			`, col.name).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check for %s column: %w", col.name, err)
			}
			if exists {
				continue
			}

			logging.Info("Migrating database: adding %s column to scan_history table", col.name)
			if _, err := d.db.ExecContext(ctx, col.ddl); err != nil {
				return fmt.Errorf("failed to add %s column: %w", col.name, err)
			}
		}
	}

	if version != schemaVersion {
		return d.SetSetting(ctx, settingSchemaVersion, fmt.Sprint(schemaVersion))
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// SizeBytes returns the combined size of the database file and its WAL.
func (d *Database) SizeBytes() int64 {
	var total int64
	for _, p := range []string{d.dbPath, d.dbPath + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("Database file %s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		if p == dbPath {
			continue
		}
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
