package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, result := range []string{"ingested", "fresh", "failed"} {
		IngestFilesTotal.WithLabelValues(result)
	}

	for _, kind := range []string{"parse", "derivation", "storage", "canceled", "other"} {
		IngestFailuresTotal.WithLabelValues(kind)
	}

	for _, strategy := range []string{"develop", "preview"} {
		ThumbnailDerivationsTotal.WithLabelValues(strategy, "success")
		ThumbnailDerivationsTotal.WithLabelValues(strategy, "error")
		ThumbnailDerivationDuration.WithLabelValues(strategy)
	}

	for _, op := range []string{"find_image_by_path", "find_tag_by_content", "insert_tag",
		"insert_image", "update_image", "link_image_tag", "upsert_image", "list_images",
		"list_tags", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, result := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(result)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}
}
