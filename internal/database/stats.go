package database

import (
	"context"
	"database/sql"
	"math"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
)

// CalculateStats computes library totals.
func (d *Database) CalculateStats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN file_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN file_type = ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT folder),
			COALESCE(SUM(CASE WHEN is_favorite = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating > 0 THEN 1 ELSE 0 END), 0)
		FROM media_files
	`, mediatypes.FileTypeImage, mediatypes.FileTypeVideo).Scan(
		&stats.TotalFiles,
		&stats.TotalImages,
		&stats.TotalVideos,
		&stats.TotalFolders,
		&stats.TotalFavorites,
		&stats.RatedFiles,
	)
	if err != nil {
		return Stats{}, err
	}

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM exif_data WHERE latitude IS NOT NULL AND longitude IS NOT NULL",
	).Scan(&stats.FilesWithLocation)
	if err != nil {
		return Stats{}, err
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM geocode_cache").Scan(&stats.GeocodeCacheEntries)
	if err != nil {
		return Stats{}, err
	}

	var lastScan sql.NullInt64
	err = d.db.QueryRowContext(ctx,
		"SELECT MAX(end_time) FROM scan_history WHERE status = ?", ScanCompleted,
	).Scan(&lastScan)
	if err != nil {
		return Stats{}, err
	}
	stats.LastScanTime = timeFromNull(lastScan)

	stats.CacheSizeMB = math.Round(float64(d.SizeBytes())/(1024*1024)*100) / 100

	return stats, nil
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	stats, err := d.CalculateStats(context.Background())
	if err != nil {
		logging.Warn("Failed to calculate stats for metrics: %v", err)
		return metrics.Stats{}
	}
	return metrics.Stats{
		TotalFiles:          stats.TotalFiles,
		TotalImages:         stats.TotalImages,
		TotalVideos:         stats.TotalVideos,
		TotalFolders:        stats.TotalFolders,
		TotalFavorites:      stats.TotalFavorites,
		FilesWithLocation:   stats.FilesWithLocation,
		GeocodeCacheEntries: stats.GeocodeCacheEntries,
	}
}
