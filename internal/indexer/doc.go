// Package indexer walks the media tree and keeps the record store in step
// with it.
//
// A scan resolves the folders to visit under the base path, walks each of
// them on the worker pool, and for every image or video found:
//   - stats the file
//   - extracts embedded metadata (EXIF or container atoms)
//   - resolves a place name when the metadata carries coordinates
//   - upserts the file row and its metadata row
//
// Files are processed one after another; only directory reads fan out. Each
// store write commits on its own, and the scan history row is closed exactly
// once with the final status and counts, including when the scan fails part
// way through.
//
// Only one scan runs at a time per Indexer. A request that arrives while a
// scan is running is rejected, not queued. Scans run at startup, on a fixed
// interval, or on demand; all three go through the same guard.
//
// Rows for files that disappeared from disk are kept. Hidden files and
// directories (prefixed with '.') are skipped.
package indexer
