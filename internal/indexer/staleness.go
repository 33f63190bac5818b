package indexer

import (
	"errors"
	"io/fs"
	"time"

	"rawgallery/internal/database"
	"rawgallery/internal/filesystem"
)

// IsStale reports whether a raw file must be (re)ingested. A file with no
// stored record is always stale. Otherwise it is stale only when the stored
// modification time is strictly older than modTime; equal times are fresh.
func IsStale(existing *database.Image, modTime time.Time) bool {
	if existing == nil {
		return true
	}
	return existing.LastModified.Before(modTime)
}

// ModTime returns the effective modification time of a raw file: the later
// of the raw file's and its sidecar's. A missing sidecar is ignored here and
// reported by the parser instead.
func ModTime(rawPath, sidecarPath string) (time.Time, error) {
	cfg := filesystem.DefaultRetryConfig()

	info, err := filesystem.StatWithRetry(rawPath, cfg)
	if err != nil {
		return time.Time{}, err
	}
	modTime := info.ModTime()

	if sidecarPath == "" {
		return modTime, nil
	}
	sidecar, err := filesystem.StatWithRetry(sidecarPath, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return modTime, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if sidecar.ModTime().After(modTime) {
		modTime = sidecar.ModTime()
	}
	return modTime, nil
}
