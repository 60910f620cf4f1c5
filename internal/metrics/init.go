package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}

	for _, status := range []string{"completed", "failed", "rejected"} {
		ScanRunsTotal.WithLabelValues(status)
	}
	for _, result := range []string{"added", "updated", "failed"} {
		ScanFilesProcessed.WithLabelValues(result)
	}

	for _, t := range []string{"image", "video"} {
		MediaFilesTotal.WithLabelValues(t)
		MetadataExtractionDuration.WithLabelValues(t)
		for _, outcome := range []string{"found", "empty", "error"} {
			MetadataExtractionsTotal.WithLabelValues(t, outcome)
		}
		RatingWritesTotal.WithLabelValues(t, "success")
		RatingWritesTotal.WithLabelValues(t, "failure")
	}

	for _, outcome := range []string{"success", "rate_limited", "timeout", "error"} {
		GeocodeRequestsTotal.WithLabelValues(outcome)
	}
	for _, result := range []string{"memory_hit", "store_hit", "miss"} {
		GeocodeCacheLookups.WithLabelValues(result)
	}
}
