package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rawgallery/internal/logging"
	"rawgallery/internal/metrics"
)

// pruneGrace leaves recent thumbnails alone: another process may have
// derived them for a row it has not committed yet.
const pruneGrace = 10 * time.Minute

// ThumbnailLister reports which thumbnail files are referenced.
type ThumbnailLister interface {
	ThumbnailPaths(ctx context.Context) (map[string]struct{}, error)
}

// PruneThumbnails deletes thumbnails no image references any more.
// Reprocessing a file never deletes its previous thumbnail, so they pile
// up until pruned. It cannot run alongside an ingestion run.
func (idx *Indexer) PruneThumbnails(ctx context.Context) (int, error) {
	if !idx.tryStartIndexing() {
		return 0, ErrRunInProgress
	}
	defer func() {
		idx.indexMu.Lock()
		idx.isIndexing = false
		idx.indexMu.Unlock()
	}()

	return pruneThumbnails(ctx, idx.db, idx.pipeline.ThumbDir, time.Now().Add(-pruneGrace))
}

// pruneThumbnails removes unreferenced .jpg files in dir last modified
// before cutoff.
func pruneThumbnails(ctx context.Context, lister ThumbnailLister, dir string, cutoff time.Time) (int, error) {
	referenced, err := lister.ThumbnailPaths(ctx)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".jpg") {
			continue
		}

		path := filepath.Join(dir, name)
		if _, ok := referenced[path]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.Warn("Failed to stat thumbnail %s: %v", path, err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			logging.Warn("Failed to remove thumbnail %s: %v", path, err)
			continue
		}
		logging.Debug("Removed unreferenced thumbnail %s", path)
		metrics.ThumbnailsPrunedTotal.Inc()
		removed++
	}

	if removed > 0 {
		logging.Info("Pruned %d unreferenced thumbnails from %s", removed, dir)
	}
	return removed, nil
}
