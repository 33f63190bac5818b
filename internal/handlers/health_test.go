package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckBeforeFirstRun(t *testing.T) {
	env := setupTestHandlers(t)

	w := httptest.NewRecorder()
	env.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	var response HealthResponse
	decode(t, w, &response)
	if response.Status != statusStarting || response.Ready {
		t.Errorf("Expected starting and not ready, got %q ready=%v", response.Status, response.Ready)
	}
}

func TestHealthCheckAfterRun(t *testing.T) {
	env := setupTestHandlers(t)
	env.seedImage(t, "/photos/a.cr2", 2, nil, []string{"Family"})

	if _, err := env.idx.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	w := httptest.NewRecorder()
	env.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var response HealthResponse
	decode(t, w, &response)

	if response.Status != statusHealthy {
		t.Errorf("Expected healthy, got %q", response.Status)
	}
	if response.LastIndexed == "" || response.LastRun == nil {
		t.Errorf("Expected last run details, got %+v", response)
	}
	if response.TotalImages != 1 || response.TotalTags != 1 {
		t.Errorf("Expected 1 image and 1 tag, got %d and %d", response.TotalImages, response.TotalTags)
	}
	if response.GoVersion == "" || response.NumCPU == 0 {
		t.Error("Expected system info to be filled in")
	}
}

func TestHealthCheckDegradedAfterFailedRun(t *testing.T) {
	env := setupTestHandlers(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.idx.Run(ctx); err == nil {
		t.Fatal("Expected canceled run to fail")
	}

	w := httptest.NewRecorder()
	env.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	var response HealthResponse
	decode(t, w, &response)
	if response.Status != statusDegraded || response.LastError == "" {
		t.Errorf("Expected degraded with an error, got %q %q", response.Status, response.LastError)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := setupTestHandlers(t)

	w := httptest.NewRecorder()
	env.h.LivenessCheck(w, httptest.NewRequest(http.MethodGet, "/livez", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var response map[string]string
	decode(t, w, &response)
	if response["status"] != "alive" {
		t.Errorf("Expected alive, got %q", response["status"])
	}

	w = httptest.NewRecorder()
	env.h.LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if w.Body.Len() != 0 {
		t.Error("HEAD response should have no body")
	}
}

func TestReadinessCheck(t *testing.T) {
	env := setupTestHandlers(t)

	w := httptest.NewRecorder()
	env.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	if _, err := env.idx.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	w = httptest.NewRecorder()
	env.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
