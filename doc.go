// Package main runs the raw photo gallery server.
//
// On start it configures GOMEMLIMIT, loads configuration from the
// environment (and an optional .env file), opens the SQLite library
// database and starts background ingestion of the photo directory. The
// gallery API and thumbnails are served on PORT; Prometheus metrics on
// METRICS_PORT when METRICS_ENABLED is set.
//
// Routes:
//
//	GET  /api/images        filtered, paged image list
//	GET  /api/images/{id}   one image with its tags
//	GET  /api/tags          tag catalog with image counts
//	POST /api/reindex       start an ingestion run
//	GET  /thumbnails/{name} derived JPEG thumbnails
//	GET  /health            status, last run summary, library counts
//
// SIGINT and SIGTERM stop ingestion between files and shut the servers down
// within 30 seconds.
//
// For one-shot ingestion from cron or a shell, see cmd/ingest.
package main
