package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rawgallery/internal/metrics"
)

const lastIngestRunKey = "last_ingest_run"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sql.ErrNoRows
	}
	if err != nil {
		return "", wrap("get metadata", err)
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrap("set metadata", err)
}

// GetLastIngestRun returns when the last ingestion run finished.
// Returns zero time if never run.
func (d *Database) GetLastIngestRun(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastIngestRunKey)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastIngestRun records when an ingestion run finished.
func (d *Database) SetLastIngestRun(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, lastIngestRunKey, "")
	}
	return d.SetMetadata(ctx, lastIngestRunKey, t.UTC().Format(time.RFC3339))
}

// LibraryStats counts stored images, tags and links.
func (d *Database) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	done := observeQuery("stats")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM tags),
			(SELECT COUNT(*) FROM image_tags)
	`).Scan(&stats.Images, &stats.Tags, &stats.TagLinks)
	done(err)
	if err != nil {
		return metrics.Stats{}, wrap("library stats", err)
	}
	return stats, nil
}
