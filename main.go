package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"rawgallery/internal/database"
	"rawgallery/internal/handlers"
	"rawgallery/internal/indexer"
	"rawgallery/internal/logging"
	"rawgallery/internal/media"
	"rawgallery/internal/memory"
	"rawgallery/internal/metrics"
	"rawgallery/internal/middleware"
	"rawgallery/internal/startup"
)

const metricsInterval = time.Minute

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, runtime.Version()).Set(1)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, falling back to pure Go resizing: %v", err)
	}

	deriver, err := config.NewDeriver()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize indexer
	startup.LogIndexerInit(config, deriver)
	pipeline := indexer.NewPipeline(db, deriver, config.ThumbnailDir)
	idx := indexer.New(db, pipeline, indexer.Config{
		PhotoDir:   config.PhotoDir,
		Extensions: config.RawExtensions,
		Interval:   config.IndexInterval,
		Workers:    config.IngestWorkers,
		Gate:       monitor,
	})

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, metricsInterval)
		collector.Start()
		idx.SetOnIndexComplete(func(indexer.Summary) {
			collector.Collect(context.Background())
		})
	}

	idx.Start()
	startup.LogIndexerStarted()

	h := handlers.New(db, idx, config)

	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression()(middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(h, config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go handleShutdown(sigChan, shutdownDone, srv, metricsSrv, idx, collector, monitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts
	<-shutdownDone
}

func setupRouter(h *handlers.Handlers, withMetrics bool) *mux.Router {
	r := mux.NewRouter()
	if withMetrics {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/images", h.ListImages).Methods("GET")
	api.HandleFunc("/images/{id:[0-9]+}", h.GetImage).Methods("GET")
	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")

	r.HandleFunc("/thumbnails/{name}", h.GetThumbnail).Methods("GET", "HEAD")

	return r
}

func newMetricsServer(h *handlers.Handlers, port string) *http.Server {
	serveMux := http.NewServeMux()
	serveMux.Handle("/metrics", h.MetricsHandler())
	serveMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           serveMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// handleShutdown waits for a signal, stops everything and closes done.
func handleShutdown(sigChan <-chan os.Signal, done chan<- struct{},
	srv, metricsSrv *http.Server, idx *indexer.Indexer, collector *metrics.Collector, monitor *memory.Monitor,
) {
	defer close(done)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	if collector != nil {
		collector.Stop()
	}
	monitor.Stop()

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	media.ShutdownVips()
	startup.LogShutdownComplete()
}
