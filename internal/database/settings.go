package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

const settingSchemaVersion = "schema_version"

// GetSetting retrieves a value from the settings table.
// Returns ErrNotFound if the key doesn't exist.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetSetting sets a key-value pair in the settings table.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// schemaVersion returns the recorded schema version, 1 for databases created
// before versions were tracked.
func (d *Database) schemaVersion(ctx context.Context) (int, error) {
	value, err := d.GetSetting(ctx, settingSchemaVersion)
	if errors.Is(err, ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 1, nil
	}
	return v, nil
}
