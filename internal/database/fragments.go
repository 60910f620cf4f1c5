package database

import (
	"context"
	"database/sql"
	"time"

	"media-index/internal/metadata"
)

const fragmentColumns = `e.file_id, e.camera_make, e.camera_model, e.date_taken,
	e.latitude, e.longitude, e.location_name, e.location_city, e.location_country,
	e.iso, e.aperture, e.shutter_speed, e.focal_length, e.flash, e.rating`

type fragmentRow struct {
	fileID       sql.NullInt64
	cameraMake   sql.NullString
	cameraModel  sql.NullString
	dateTaken    sql.NullInt64
	latitude     sql.NullFloat64
	longitude    sql.NullFloat64
	locName      sql.NullString
	locCity      sql.NullString
	locCountry   sql.NullString
	iso          sql.NullInt64
	aperture     sql.NullFloat64
	shutterSpeed sql.NullString
	focalLength  sql.NullFloat64
	flash        sql.NullString
	rating       sql.NullInt64
}

func (r *fragmentRow) dest() []any {
	return []any{
		&r.fileID, &r.cameraMake, &r.cameraModel, &r.dateTaken,
		&r.latitude, &r.longitude, &r.locName, &r.locCity, &r.locCountry,
		&r.iso, &r.aperture, &r.shutterSpeed, &r.focalLength, &r.flash, &r.rating,
	}
}

// fragment returns nil when the joined row was absent.
func (r *fragmentRow) fragment() *metadata.Fragment {
	if !r.fileID.Valid {
		return nil
	}

	frag := &metadata.Fragment{
		CameraMake:   r.cameraMake.String,
		CameraModel:  r.cameraModel.String,
		DateTaken:    timeFromNull(r.dateTaken),
		Latitude:     floatFromNull(r.latitude),
		Longitude:    floatFromNull(r.longitude),
		ISO:          intFromNull(r.iso),
		Aperture:     floatFromNull(r.aperture),
		ShutterSpeed: r.shutterSpeed.String,
		FocalLength:  floatFromNull(r.focalLength),
		Flash:        r.flash.String,
		Rating:       intFromNull(r.rating),
	}
	if r.locName.Valid || r.locCity.Valid || r.locCountry.Valid {
		frag.Place = &metadata.Place{
			Name:    r.locName.String,
			City:    r.locCity.String,
			Country: r.locCountry.String,
		}
	}
	return frag
}

// UpsertFragment replaces the metadata row of fileID with frag.
func (d *Database) UpsertFragment(ctx context.Context, fileID int64, frag *metadata.Fragment) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_fragment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var name, city, country any
	if frag.Place != nil {
		name, city, country = frag.Place.Name, frag.Place.City, frag.Place.Country
	}

	_, err = d.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO exif_data (
		file_id, camera_make, camera_model, date_taken,
		latitude, longitude, location_name, location_city, location_country,
		iso, aperture, shutter_speed, focal_length, flash, rating
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		fileID,
		nullString(frag.CameraMake),
		nullString(frag.CameraModel),
		nullTime(frag.DateTaken),
		frag.Latitude,
		frag.Longitude,
		name,
		city,
		country,
		frag.ISO,
		frag.Aperture,
		nullString(frag.ShutterSpeed),
		frag.FocalLength,
		nullString(frag.Flash),
		frag.Rating,
	)
	return err
}

// DeleteFragment removes the metadata row of fileID, if any.
func (d *Database) DeleteFragment(ctx context.Context, fileID int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_fragment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM exif_data WHERE file_id = ?", fileID)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
