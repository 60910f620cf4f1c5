package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/metrics"
)

// setupTestDB creates a database in a per-test temporary directory.
func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "media_index.db")
	db, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewCreatesDatabase(t *testing.T) {
	db := setupTestDB(t)

	_, err := os.Stat(db.Path())
	require.NoError(t, err)
	assert.Positive(t, db.SizeBytes())

	version, err := db.GetSetting(context.Background(), settingSchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestNewIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media_index.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	_, err = db.UpsertFile(ctx, testRecord("/media/a.jpg"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrationAddsScanColumns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	legacy, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = legacy.ExecContext(ctx, `
		CREATE TABLE scan_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			folder_path TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			files_added INTEGER NOT NULL DEFAULT 0,
			files_updated INTEGER NOT NULL DEFAULT 0,
			files_removed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		);
		INSERT INTO scan_history (folder_path, start_time, end_time, status)
		VALUES ('/media', 1700000000, 1700000060, 'completed');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	rec, err := db.GetScan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ScanTypeFull, rec.ScanType)
	assert.Empty(t, rec.Folders)
	assert.Equal(t, ScanCompleted, rec.Status)

	version, err := db.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "media_index.db")

	_, err := New(context.Background(), dbPath)
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetSetting(ctx, "k", "v1"))
	require.NoError(t, db.SetSetting(ctx, "k", "v2"))

	v, err := db.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"success", nil, "success"},
		{"not found counts as success", ErrNotFound, "success"},
		{"failure", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := "test_record_query_" + tt.wantStatus
			counter := metrics.DBQueryTotal.WithLabelValues(op, tt.wantStatus)
			before := testutil.ToFloat64(counter)

			recordQuery(op, time.Now(), tt.err)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}
