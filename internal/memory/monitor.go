package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"rawgallery/internal/logging"
	"rawgallery/internal/metrics"
)

// Config holds memory monitor configuration
type Config struct {
	// LimitBytes overrides GOMEMLIMIT when set.
	LimitBytes int64
	// Workers resume once usage drops below HighWaterMark.
	HighWaterMark float64
	// Workers pause once usage reaches CriticalWaterMark.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor tracks heap usage and holds ingestion back under pressure.
type Monitor struct {
	config   Config
	limit    int64
	readHeap func() uint64

	mu        sync.Mutex
	current   uint64
	paused    bool
	resumed   chan struct{}
	stopChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor creates a monitor. Without LimitBytes it uses GOMEMLIMIT; with
// neither it is inert.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
		}
	}

	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	} else {
		logging.Info("Memory monitor limit: %s", formatBytes(limit))
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		readHeap: heapAlloc,
		resumed:  make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins sampling. It is a no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	m.startOnce.Do(func() { go m.loop() })
}

// Stop ends sampling and releases any paused workers.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.mu.Lock()
		m.setPausedLocked(false)
		m.mu.Unlock()
	})
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	current := m.readHeap()
	usage := float64(current) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = current

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing ingestion", usage*100)
		m.setPausedLocked(true)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming ingestion", usage*100)
		m.setPausedLocked(false)
	}
}

func (m *Monitor) setPausedLocked(paused bool) {
	if m.paused == paused {
		return
	}
	m.paused = paused
	if paused {
		metrics.MemoryPaused.Set(1)
		return
	}
	metrics.MemoryPaused.Set(0)
	close(m.resumed)
	m.resumed = make(chan struct{})
}

// Wait blocks while memory is critical. It returns ctx.Err() if ctx ends
// first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resumed := m.resumed
	m.mu.Unlock()

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether workers are currently held back.
func (m *Monitor) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled usage as a fraction of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.current) / float64(m.limit)
}
