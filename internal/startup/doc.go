// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [ParseConfig], after
// any .env file in the working directory (or its parent) has been loaded.
// Variables already present in the environment take precedence over the file.
//
//   - MEDIA_DIR: Root of the media tree to index (default: /media)
//   - WATCHED_FOLDERS: Comma-separated sub-folders of MEDIA_DIR to scan (default: all)
//   - MAX_DEPTH: Maximum directory depth below each scanned folder, 0 for the folder itself only, -1 (default) for unlimited
//   - DATABASE_DIR: Directory holding media_index.db (default: /database)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - SCAN_ON_STARTUP: Run a scan when the server starts (default: true)
//   - SCAN_INTERVAL: Periodic rescan interval as Go duration, 0 disables (default: 0s)
//   - GEOCODE_ENABLED: Resolve GPS coordinates to place names (default: true)
//   - GEOCODE_URL: Nominatim base URL (default: https://nominatim.openstreetmap.org)
//   - GEOCODE_USER_AGENT: User-Agent sent to the geocoder (default: media-index/1.0)
//   - GEOCODE_INTERVAL: Minimum spacing between geocoder requests (default: 1s)
//   - GEOCODE_TIMEOUT: Per-request geocoder timeout (default: 10s)
//   - GEOCODE_MAX_RETRIES: Geocoder attempts per lookup (default: 3)
//   - WRITE_RATINGS_TO_FILE: Mirror ratings into the media file (default: true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - LOG_LEVEL, LOG_FORMAT: See package logging
//
// [LoadConfig] wraps [ParseConfig] with the startup banner, absolute path
// resolution and a write check on the database directory.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogGeocoderInit]: Geocoder endpoint and rate limit
//   - [LogIndexerInit]: Worker count and scan schedule
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
