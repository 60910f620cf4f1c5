// Package metrics provides Prometheus instrumentation for the media indexer.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_index_". Mount promhttp.Handler() to expose them:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Metric Categories
//
//   - HTTP: request counts, latency and in-flight requests
//   - Database: query counts and latency by operation, file sizes
//   - Scan: runs by status, running flag, last run time and duration,
//     files processed by result, missing folders skipped
//   - Metadata: extraction outcomes and latency by file type, rating writes
//   - Geocoding: HTTP outcomes and latency, cache lookups by layer,
//     time spent waiting on the rate-limit gate
//   - Filesystem: NFS stale-handle retries by operation
//   - Library: files by type, folders, favorites, located files,
//     geocode cache rows
//
// The library gauges are derived from the database. A [Collector] polls a
// [StatsProvider] on an interval and refreshes them:
//
//	collector := metrics.NewCollector(provider, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Geocode cache hit rate:
//
//	sum(rate(media_index_geocode_cache_lookups_total{result=~".*_hit"}[1h])) /
//	sum(rate(media_index_geocode_cache_lookups_total[1h]))
//
// Files failing extraction or persistence during scans:
//
//	rate(media_index_scan_files_processed_total{result="failed"}[1h])
package metrics
