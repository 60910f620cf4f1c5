// Package handlers provides the HTTP handlers of the media index service.
//
// It includes handlers for:
//   - Triggering scans and listing scan history
//   - Library statistics and single-file lookups
//   - Ratings, favorites and random samples
//   - Health, readiness and version probes
//
// Handlers depend on the small [Indexer] and [Store] interfaces so they can be
// exercised with in-memory fakes.
package handlers
