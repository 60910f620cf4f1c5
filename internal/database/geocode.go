package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-index/internal/geocode"
)

// GetGeocode looks up a cached location for coordinates already rounded to
// precision.
func (d *Database) GetGeocode(ctx context.Context, lat, lon float64, precision int) (loc geocode.Location, ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("get_geocode", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT location_name, location_city, location_country
		FROM geocode_cache
		WHERE latitude = ? AND longitude = ? AND precision_level = ?
	`, lat, lon, precision).Scan(&loc.Name, &loc.City, &loc.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return geocode.Location{}, false, nil
	}
	if err != nil {
		return geocode.Location{}, false, err
	}
	return loc, true, nil
}

// PutGeocode stores a resolved location. An existing entry for the same key
// is left untouched.
func (d *Database) PutGeocode(ctx context.Context, lat, lon float64, precision int, loc geocode.Location) (err error) {
	start := time.Now()
	defer func() { recordQuery("put_geocode", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (latitude, longitude, precision_level, location_name, location_city, location_country, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(latitude, longitude, precision_level) DO NOTHING
	`, lat, lon, precision, loc.Name, loc.City, loc.Country, time.Now().Unix())
	return err
}
