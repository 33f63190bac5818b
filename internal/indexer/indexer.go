package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rawgallery/internal/database"
	"rawgallery/internal/logging"
	"rawgallery/internal/mediatypes"
	"rawgallery/internal/metrics"
)

// Config holds the settings of an Indexer.
type Config struct {
	PhotoDir   string
	Extensions mediatypes.RawExtensions
	// Interval between background runs; 0 disables them.
	Interval time.Duration
	// Workers is the number of files processed at once (0 = auto).
	Workers int
	// Gate, if set, is waited on before each file. memory.Monitor uses it
	// to hold workers back under memory pressure.
	Gate Gate
}

// Gate delays work until it may proceed or ctx ends.
type Gate interface {
	Wait(ctx context.Context) error
}

// Indexer runs the pipeline over every raw file in the photo directory,
// once or on a schedule.
type Indexer struct {
	db       *database.Database
	pipeline *Pipeline
	photoDir string
	exts     mediatypes.RawExtensions
	interval time.Duration
	workers  int
	gate     Gate

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastSummary          *Summary
	lastError            error
	initialIndexComplete bool
	startTime            time.Time

	filesProcessed atomic.Int64
	indexProgress  atomic.Value

	onIndexComplete func(Summary)
}

// Summary counts the outcomes of one run.
type Summary struct {
	Scanned  int                 `json:"scanned"`
	Ingested int                 `json:"ingested"`
	Fresh    int                 `json:"fresh"`
	Failed   int                 `json:"failed"`
	ByKind   map[FailureKind]int `json:"byKind,omitempty"`
	Duration time.Duration       `json:"-"`
}

func (s *Summary) add(res fileResult) {
	switch res.outcome {
	case OutcomeIngested:
		s.Ingested++
	case OutcomeFresh:
		s.Fresh++
	default:
		s.Failed++
		if s.ByKind == nil {
			s.ByKind = make(map[FailureKind]int)
		}
		s.ByKind[Classify(res.err)]++
	}
}

// IngestProgress tracks the run in progress.
type IngestProgress struct {
	FilesProcessed int64     `json:"filesProcessed"`
	FilesTotal     int64     `json:"filesTotal"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// New creates an Indexer.
func New(db *database.Database, pipeline *Pipeline, cfg Config) *Indexer {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = mediatypes.NewRawExtensions(mediatypes.DefaultRawExtensions)
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		db:        db,
		pipeline:  pipeline,
		photoDir:  cfg.PhotoDir,
		exts:      exts,
		interval:  cfg.Interval,
		workers:   workerCount(cfg.Workers),
		gate:      cfg.Gate,
		ctx:       ctx,
		cancel:    cancel,
		stopChan:  make(chan struct{}),
		startTime: time.Now(),
	}
	idx.indexProgress.Store(IngestProgress{})
	return idx
}

// SetOnIndexComplete sets a callback invoked after every successful run.
func (idx *Indexer) SetOnIndexComplete(callback func(Summary)) {
	idx.onIndexComplete = callback
}

// Start runs an initial ingestion in the background and then repeats it
// every interval, if one is set.
func (idx *Indexer) Start() {
	go func() {
		logging.Info("Starting initial ingestion in background...")
		if _, err := idx.Run(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Initial ingestion error: %v", err)
		}
	}()

	if idx.interval > 0 {
		go idx.periodicIndex()
	}
}

// Stop ends background runs and cancels the one in progress, if any.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		close(idx.stopChan)
		idx.cancel()
	})
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic ingestion triggered")
			_, err := idx.Run(idx.ctx)
			switch {
			case errors.Is(err, ErrRunInProgress):
				logging.Info("Ingestion already in progress, skipping...")
			case err != nil && !errors.Is(err, context.Canceled):
				logging.Error("Periodic ingestion failed: %v", err)
			}
		case <-idx.stopChan:
			return
		}
	}
}

// TriggerIndex starts a run in the background. It returns false when a run
// is already in progress.
func (idx *Indexer) TriggerIndex() bool {
	if idx.IsIndexing() {
		return false
	}
	go func() {
		_, err := idx.Run(idx.ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			logging.Info("Ingestion already in progress, skipping...")
		case err != nil && !errors.Is(err, context.Canceled):
			logging.Error("Manually triggered ingestion failed: %v", err)
		}
	}()
	return true
}

// Run ingests every raw file under the photo directory. Files that fail
// are logged, counted in the summary and skipped; a stale file is retried
// on the next run since nothing was written for it. Run returns an error
// only when the directory cannot be scanned, the context is canceled, or
// the store fails fatally (ErrRunAborted).
func (idx *Indexer) Run(ctx context.Context) (summary Summary, err error) {
	if !idx.tryStartIndexing() {
		return Summary{}, ErrRunInProgress
	}
	defer func() {
		idx.finishIndexing(summary, err)
	}()

	metrics.IngestRunning.Set(1)
	defer metrics.IngestRunning.Set(0)
	metrics.IngestRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting ingestion of %s", idx.photoDir)

	paths, err := Scan(ctx, idx.photoDir, idx.exts)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", idx.photoDir, err)
	}
	summary.Scanned = len(paths)
	idx.resetProgress(startTime, len(paths))

	var abortErr error
	processAll(ctx, paths, idx.workers,
		func(ctx context.Context, path string) (Outcome, error) {
			if idx.gate != nil {
				if err := idx.gate.Wait(ctx); err != nil {
					return OutcomeFailed, err
				}
			}
			_, outcome, err := idx.pipeline.Process(ctx, path)
			return outcome, err
		},
		func(res fileResult) bool {
			idx.filesProcessed.Add(1)
			idx.updateProgress(startTime, len(paths))
			summary.add(res)

			if res.err == nil {
				return true
			}
			kind := Classify(res.err)
			metrics.IngestFailuresTotal.WithLabelValues(string(kind)).Inc()
			if kind == FailureCanceled {
				logging.Debug("Canceled %s: %v", res.path, res.err)
			} else {
				logging.Warn("Skipping %s (%s): %v", res.path, kind, res.err)
			}

			if database.IsFatal(res.err) && abortErr == nil {
				abortErr = fmt.Errorf("%w: %w", ErrRunAborted, res.err)
				return false
			}
			return true
		},
	)
	summary.Duration = time.Since(startTime)

	if abortErr != nil {
		logging.Error("Ingestion aborted after %d files: %v", summary.Ingested+summary.Fresh+summary.Failed, abortErr)
		return summary, abortErr
	}
	if err := ctx.Err(); err != nil {
		logging.Info("Ingestion canceled after %d of %d files", summary.Ingested+summary.Fresh+summary.Failed, summary.Scanned)
		return summary, err
	}

	if err := idx.db.SetLastIngestRun(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record ingestion time: %v", err)
	}
	metrics.IngestLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IngestLastRunDuration.Set(summary.Duration.Seconds())

	logging.Info("Ingestion complete: %d files, %d ingested, %d fresh, %d failed in %v",
		summary.Scanned, summary.Ingested, summary.Fresh, summary.Failed, summary.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(summary)
	}
	return summary, nil
}

// tryStartIndexing attempts to start a run, returns false if one is already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

// finishIndexing marks the run as complete.
func (idx *Indexer) finishIndexing(summary Summary, err error) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
	idx.lastIndexTime = time.Now()
	idx.lastSummary = &summary
	idx.lastError = err

	idx.indexProgress.Store(IngestProgress{
		FilesProcessed: idx.filesProcessed.Load(),
		FilesTotal:     int64(summary.Scanned),
	})
}

func (idx *Indexer) resetProgress(startTime time.Time, total int) {
	idx.filesProcessed.Store(0)
	idx.updateProgress(startTime, total)
}

func (idx *Indexer) updateProgress(startTime time.Time, total int) {
	idx.indexProgress.Store(IngestProgress{
		FilesProcessed: idx.filesProcessed.Load(),
		FilesTotal:     int64(total),
		IsIndexing:     true,
		StartedAt:      startTime,
	})
}

// GetProgress returns the progress of the current run.
func (idx *Indexer) GetProgress() IngestProgress {
	if progress, ok := idx.indexProgress.Load().(IngestProgress); ok {
		return progress
	}
	return IngestProgress{}
}

// IsIndexing returns whether a run is in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns when the last run finished.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready       bool            `json:"ready"`
	Indexing    bool            `json:"indexing"`
	StartTime   time.Time       `json:"startTime"`
	Uptime      string          `json:"uptime"`
	LastIndexed time.Time       `json:"lastIndexed,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
	LastRun     *Summary        `json:"lastRun,omitempty"`
	Progress    *IngestProgress `json:"progress,omitempty"`
}

// GetHealthStatus returns detailed health information. The gallery is
// ready once the first run has finished, successfully or not.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialIndexComplete,
		Indexing:    idx.isIndexing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).String(),
		LastIndexed: idx.lastIndexTime,
		LastRun:     idx.lastSummary,
	}

	if idx.isIndexing {
		progress := idx.GetProgress()
		status.Progress = &progress
	}
	if idx.lastError != nil {
		status.LastError = idx.lastError.Error()
	}
	return status
}
