package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"rawgallery/internal/filesystem"
	"rawgallery/internal/logging"
)

// GetThumbnail serves a derived thumbnail by file name. Names are never
// reused, so responses may be cached indefinitely.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !validThumbnailName(name) {
		logging.Warn("Thumbnail: rejected name %q", name)
		http.Error(w, "Invalid thumbnail name", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.thumbDir, name)

	f, err := filesystem.OpenWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Thumbnail not found", http.StatusNotFound)
		} else {
			logging.Error("Thumbnail: failed to open %s: %v", fullPath, err)
			http.Error(w, "Failed to access thumbnail", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "Thumbnail not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func validThumbnailName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".jpg")
}
