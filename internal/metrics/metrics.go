package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawgallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawgallery_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawgallery_db_transaction_duration_seconds",
			Help:    "Duration of per-image upsert transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"result"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Ingestion metrics
var (
	IngestRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rawgallery_ingest_runs_total",
			Help: "Total number of ingestion runs",
		},
	)

	IngestRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_ingest_running",
			Help: "Whether an ingestion run is in progress (1 = running, 0 = idle)",
		},
	)

	IngestLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_ingest_last_run_timestamp",
			Help: "Unix timestamp of the last finished ingestion run",
		},
	)

	IngestLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_ingest_last_run_duration_seconds",
			Help: "Duration of the last ingestion run in seconds",
		},
	)

	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_ingest_files_total",
			Help: "Candidate files processed, by result",
		},
		[]string{"result"}, // "ingested", "fresh", "failed"
	)

	IngestFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_ingest_failures_total",
			Help: "Per-file ingestion failures, by failure kind",
		},
		[]string{"kind"},
	)

	IngestFileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rawgallery_ingest_file_duration_seconds",
			Help:    "Time spent ingesting a single stale file",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailDerivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_thumbnail_derivations_total",
			Help: "Total number of thumbnail derivations",
		},
		[]string{"strategy", "status"},
	)

	ThumbnailDerivationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawgallery_thumbnail_derivation_duration_seconds",
			Help:    "Thumbnail derivation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	ThumbnailsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rawgallery_thumbnails_pruned_total",
			Help: "Superseded thumbnail files removed by pruning",
		},
	)
)

// Library metrics
var (
	LibraryImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_library_images",
			Help: "Number of images stored",
		},
	)

	LibraryTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_library_tags",
			Help: "Number of distinct hierarchical tags stored",
		},
	)

	LibraryTagLinksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_library_tag_links",
			Help: "Number of image-tag associations stored",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_filesystem_retry_attempts_total",
			Help: "Retries issued after a stale NFS file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawgallery_filesystem_retry_failures_total",
			Help: "Operations that still failed after exhausting retries",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rawgallery_memory_paused",
			Help: "Whether ingestion is held back by memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rawgallery_memory_gc_pauses_total",
			Help: "Times ingestion was paused and a GC forced due to memory pressure",
		},
	)
)

// Application info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "rawgallery_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
