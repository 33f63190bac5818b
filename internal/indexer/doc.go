// Package indexer ingests the photo directory into the gallery database.
//
// For every raw file found by Scan, Pipeline.Process:
//   - looks up the stored record and compares its modification time with
//     the later of the raw file's and its sidecar's (IsStale)
//   - returns fresh records untouched
//   - otherwise parses the sidecar, derives a new thumbnail, resolves the
//     tags and writes the image and its tag links in one transaction
//
// Failures concern one file only: the run logs the path and failure kind
// and moves on, and since nothing was written the file is retried on the
// next run. A fatal storage error aborts the run (ErrRunAborted).
//
// An Indexer runs the pipeline once (Run), in the background on an
// interval (Start/Stop), or on demand (TriggerIndex). Files are processed
// one at a time unless more workers are configured.
//
// Previous thumbnails are left on disk when a file is reprocessed;
// PruneThumbnails removes the ones nothing references.
package indexer
