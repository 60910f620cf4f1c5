// Package database provides the SQLite record store for the media index.
//
// It handles storage and retrieval of:
//   - Indexed media files with the user-owned favorite flag and rating
//   - Embedded metadata extracted from each file
//   - Permanent reverse-geocoding results keyed by rounded coordinates
//   - Scan history
//
// The database uses WAL mode so the HTTP layer can read while a scan writes,
// and applies its schema and migrations on open.
package database
