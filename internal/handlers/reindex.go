package handlers

import (
	"net/http"

	"rawgallery/internal/logging"
)

// TriggerReindex starts an ingestion run in the background.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	if !h.indexer.TriggerIndex() {
		writeJSONStatus(w, "already_running", "Ingestion is already in progress", http.StatusConflict)
		return
	}

	logging.Info("Ingestion triggered via API")
	writeJSONStatus(w, "started", "Ingestion started", http.StatusAccepted)
}
