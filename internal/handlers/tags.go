package handlers

import (
	"net/http"

	"rawgallery/internal/database"
	"rawgallery/internal/logging"
)

// GetAllTags returns every stored tag with the number of images carrying it.
func (h *Handlers) GetAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags(r.Context())
	if err != nil {
		logging.Error("GetAllTags database error: %v", err)
		writeJSONError(w, "Failed to get tags", http.StatusInternalServerError)
		return
	}

	if tags == nil {
		tags = []database.Tag{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tags)
}
