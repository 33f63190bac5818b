package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"rawgallery/internal/logging"
	"rawgallery/internal/mediatypes"
)

// Scan walks root and returns every raw file under it in lexical order.
// Hidden files and directories are skipped. Unreadable subdirectories are
// logged and skipped; only a failure on root itself is returned.
func Scan(ctx context.Context, root string, exts mediatypes.RawExtensions) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if exts.IsRaw(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("Found %d raw files under %s", len(paths), root)
	return paths, nil
}
