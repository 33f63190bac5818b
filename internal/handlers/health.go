package handlers

import (
	"net/http"
	"runtime"
	"time"

	"rawgallery/internal/indexer"
	"rawgallery/internal/logging"
	"rawgallery/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Indexing    bool   `json:"indexing"`
	LastIndexed string `json:"lastIndexed,omitempty"`
	LastError   string `json:"lastError,omitempty"`

	LastRun  *indexer.Summary        `json:"lastRun,omitempty"`
	Progress *indexer.IngestProgress `json:"progress,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Library
	TotalImages int `json:"totalImages"`
	TotalTags   int `json:"totalTags"`
}

// HealthCheck returns the health status of the service. It answers 503
// until the first ingestion run has finished.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Ready:        healthStatus.Ready,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Indexing:     healthStatus.Indexing,
		LastError:    healthStatus.LastError,
		LastRun:      healthStatus.LastRun,
		Progress:     healthStatus.Progress,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format(time.RFC3339)
	}

	if healthStatus.LastError != "" {
		response.Status = statusDegraded
	}

	stats, err := h.db.LibraryStats(r.Context())
	if err != nil {
		logging.Warn("Health check could not read library stats: %v", err)
		response.Status = statusDegraded
	} else {
		response.TotalImages = stats.Images
		response.TotalTags = stats.Tags
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck always returns 200 while the server is running
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the first ingestion run has finished
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.GetHealthStatus().Ready {
		writeJSONStatus(w, "ready", "", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", "initial ingestion still running", http.StatusServiceUnavailable)
}
