// Package metrics provides Prometheus instrumentation for the raw gallery.
//
// All metrics are prefixed with "rawgallery_". The main groups are:
//
//   - ingest: per-run and per-file outcomes of the ingestion pipeline,
//     failures labeled by kind (parse, derivation, storage, canceled, other)
//   - thumbnail: derivation counts and latency per strategy (develop, preview)
//   - db: query counts/latency per repository operation, transaction latency
//   - library: image, tag and image-tag link gauges refreshed by Collector
//   - http: request counts/latency for the gallery API
//
// Metrics are registered with the default registry through promauto and are
// served on /metrics by the gallery server when METRICS_ENABLED is true.
package metrics
