package metrics

import (
	"context"
	"time"

	"rawgallery/internal/logging"
)

// StatsProvider supplies library counts for the gauges.
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// connectionStatsProvider is implemented by providers that also export
// connection pool gauges.
type connectionStatsProvider interface {
	UpdateDBMetrics()
}

// Stats holds the current library counts
type Stats struct {
	Images   int
	Tags     int
	TagLinks int
}

// Collector periodically refreshes the library gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.Collect(context.Background())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect(context.Background())
		case <-c.stopChan:
			return
		}
	}
}

// Collect refreshes the gauges once.
func (c *Collector) Collect(ctx context.Context) {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryImagesTotal.Set(float64(stats.Images))
	LibraryTagsTotal.Set(float64(stats.Tags))
	LibraryTagLinksTotal.Set(float64(stats.TagLinks))

	if p, ok := c.statsProvider.(connectionStatsProvider); ok {
		p.UpdateDBMetrics()
	}

	logging.Debug("Metrics collected: images=%d, tags=%d, links=%d",
		stats.Images, stats.Tags, stats.TagLinks)
}
