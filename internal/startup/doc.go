// Package startup handles configuration loading and startup/shutdown
// logging.
//
// # Configuration
//
// Configuration comes from environment variables, optionally seeded from a
// .env file (ENV_FILE, default ".env"; variables already set win):
//
//   - PHOTO_DIR: root of the raw photo tree, must exist (default: /photos)
//   - CACHE_DIR: thumbnails are written to CACHE_DIR/thumbnails (default: /cache)
//   - DATABASE_DIR: holds gallery.db (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - INDEX_INTERVAL: Background ingestion interval, 0 disables (default: 1h)
//   - THUMBNAIL_STRATEGY: develop, preview or auto (default: auto)
//   - DEVELOP_COMMAND: raw developer binary (default: darktable-cli)
//   - DEVELOP_ARGS: extra developer arguments, split on whitespace
//   - THUMBNAIL_SIZE: bounding box edge in pixels (default: 1000)
//   - THUMBNAIL_QUALITY: JPEG quality of embedded previews (default: 85)
//   - INGEST_WORKERS: files processed at once, 0 or "auto" sizes from CPUs (default: 1)
//   - RAW_EXTENSIONS: comma-separated raw extensions
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log thumbnail requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid settings, a missing photo directory, unwritable database or
// thumbnail directories, and a missing developer under the develop strategy
// are reported as *ConfigError. Under auto a missing developer only
// disables development and thumbnails come from embedded previews.
//
// # Startup Logging
//
// The Log* functions print the sectioned startup and shutdown log used by
// the server.
package startup
