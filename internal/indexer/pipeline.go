package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"rawgallery/internal/database"
	"rawgallery/internal/logging"
	"rawgallery/internal/media"
	"rawgallery/internal/mediatypes"
	"rawgallery/internal/metrics"
	"rawgallery/internal/tags"
	"rawgallery/internal/xmp"
)

// Store is the persistence the pipeline needs.
type Store interface {
	FindImageByPath(ctx context.Context, path string) (*database.Image, error)
	UpsertImageWithTags(ctx context.Context, path string, fields database.ImageFields, tags []database.Tag) (*database.Image, error)
}

// Outcome is the result of processing one file.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeIngested
	OutcomeFresh
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIngested:
		return "ingested"
	case OutcomeFresh:
		return "fresh"
	default:
		return "failed"
	}
}

// Pipeline ingests a single raw file.
type Pipeline struct {
	Store      Store
	Normalizer *tags.Normalizer
	Deriver    media.Deriver
	ThumbDir   string

	// CaptureTime reads the capture timestamp of a raw file. Defaults to
	// media.CaptureTime.
	CaptureTime func(rawPath string) (*time.Time, error)
}

// NewPipeline wires a pipeline to one store. The store also backs tag
// normalization.
func NewPipeline(store interface {
	Store
	tags.Store
}, deriver media.Deriver, thumbDir string) *Pipeline {
	return &Pipeline{
		Store:       store,
		Normalizer:  tags.NewNormalizer(store),
		Deriver:     deriver,
		ThumbDir:    thumbDir,
		CaptureTime: media.CaptureTime,
	}
}

// Process ingests rawPath unless its stored record is still fresh, in which
// case the stored record is returned untouched. Errors concern this file
// only, except for fatal storage errors (see database.IsFatal).
func (p *Pipeline) Process(ctx context.Context, rawPath string) (*database.Image, Outcome, error) {
	start := time.Now()
	img, outcome, err := p.process(ctx, rawPath)

	metrics.IngestFilesTotal.WithLabelValues(outcome.String()).Inc()
	if outcome != OutcomeFresh {
		metrics.IngestFileDuration.Observe(time.Since(start).Seconds())
	}
	return img, outcome, err
}

func (p *Pipeline) process(ctx context.Context, rawPath string) (*database.Image, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, OutcomeFailed, err
	}

	sidecarPath := mediatypes.SidecarPath(rawPath)

	existing, err := p.Store.FindImageByPath(ctx, rawPath)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	// Taken before any work so that edits made while processing show up as
	// stale on the next run.
	modTime, err := ModTime(rawPath, sidecarPath)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("stat %s: %w", rawPath, err)
	}

	if !IsStale(existing, modTime) {
		logging.Debug("Skipping fresh file %s", rawPath)
		return existing, OutcomeFresh, nil
	}

	meta, err := xmp.Parse(sidecarPath)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	thumbPath, err := p.Deriver.Derive(ctx, rawPath, sidecarPath, p.ThumbDir)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	img, err := p.store(ctx, rawPath, meta, modTime, thumbPath)
	if err != nil {
		// Nothing references the new thumbnail yet.
		if rmErr := os.Remove(thumbPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.Warn("Failed to remove unused thumbnail %s: %v", thumbPath, rmErr)
		}
		return nil, OutcomeFailed, err
	}

	if existing != nil {
		logging.Debug("Reprocessed %s (id %d, rating %d, %d tags)", rawPath, img.ID, img.Rating, len(img.Tags))
	} else {
		logging.Debug("Ingested %s (id %d, rating %d, %d tags)", rawPath, img.ID, img.Rating, len(img.Tags))
	}
	return img, OutcomeIngested, nil
}

func (p *Pipeline) store(ctx context.Context, rawPath string, meta *xmp.Metadata, modTime time.Time, thumbPath string) (*database.Image, error) {
	resolved, err := p.Normalizer.Normalize(ctx, meta.RawTagPaths)
	if err != nil {
		return nil, err
	}

	fields := database.ImageFields{
		Rating:       meta.Rating,
		LastModified: modTime,
		ThumbPath:    thumbPath,
		CaptureTime:  p.captureTime(rawPath),
	}
	return p.Store.UpsertImageWithTags(ctx, rawPath, fields, resolved)
}

// captureTime is best effort; plenty of raw files carry no usable EXIF date.
func (p *Pipeline) captureTime(rawPath string) *time.Time {
	if p.CaptureTime == nil {
		return nil
	}
	t, err := p.CaptureTime(rawPath)
	if err != nil {
		logging.Debug("No capture time for %s: %v", rawPath, err)
		return nil
	}
	return t
}
