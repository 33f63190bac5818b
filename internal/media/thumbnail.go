package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rawgallery/internal/logging"
	"rawgallery/internal/metrics"
)

// Strategy names.
const (
	StrategyDevelop = "develop"
	StrategyPreview = "preview"
	StrategyAuto    = "auto"
)

// Defaults for the thumbnail bounding box and JPEG quality.
const (
	DefaultSize    = 1000
	DefaultQuality = 85
)

var (
	// ErrNoPreview means the raw file carries no decodable embedded preview.
	ErrNoPreview = errors.New("no embedded preview found")
	// ErrNoOutput means the developer exited cleanly but wrote no file.
	ErrNoOutput = errors.New("developer produced no output file")
)

// Deriver produces a thumbnail file for a raw photo inside outDir and
// returns its path.
type Deriver interface {
	Strategy() string
	Derive(ctx context.Context, rawPath, sidecarPath, outDir string) (string, error)
}

// IDGenerator names thumbnail files. IDs must never repeat.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// DerivationError reports a failed thumbnail derivation for one file.
type DerivationError struct {
	Path     string
	Strategy string
	Err      error
	// Output is the captured stdout/stderr of an external tool, if any.
	Output string
}

func (e *DerivationError) Error() string {
	msg := fmt.Sprintf("derive thumbnail for %s (%s): %v", e.Path, e.Strategy, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// thumbnailPath returns a fresh output path inside outDir.
func thumbnailPath(ids IDGenerator, outDir string) string {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return filepath.Join(outDir, ids.NewID()+".jpg")
}

// observe records a derivation attempt.
func observe(strategy string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ThumbnailDerivationsTotal.WithLabelValues(strategy, status).Inc()
	metrics.ThumbnailDerivationDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

// Chain tries each deriver in turn and returns the first thumbnail produced.
type Chain []Deriver

// Strategy describes the chain.
func (c Chain) Strategy() string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Strategy()
	}
	return strings.Join(names, "+")
}

// Derive runs the chain. When every deriver fails, the returned
// *DerivationError joins all their errors.
func (c Chain) Derive(ctx context.Context, rawPath, sidecarPath, outDir string) (string, error) {
	var errs []error
	for _, d := range c {
		path, err := d.Derive(ctx, rawPath, sidecarPath, outDir)
		if err == nil {
			return path, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", err
		}
		logging.Debug("Thumbnail strategy %s failed for %s: %v", d.Strategy(), rawPath, err)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return "", &DerivationError{Path: rawPath, Strategy: c.Strategy(), Err: errors.New("no strategies configured")}
	}
	if len(errs) == 1 {
		return "", errs[0]
	}
	return "", &DerivationError{Path: rawPath, Strategy: c.Strategy(), Err: errors.Join(errs...)}
}

// NewStrategy returns the deriver for a configured strategy name. Under
// auto a nil developer degrades to the embedded preview alone.
func NewStrategy(name string, developer *Developer, preview *PreviewExtractor) (Deriver, error) {
	switch name {
	case StrategyDevelop:
		if developer == nil {
			return nil, errors.New("develop strategy requires a developer command")
		}
		return developer, nil
	case StrategyPreview:
		if preview == nil {
			return nil, errors.New("preview strategy requires a preview extractor")
		}
		return preview, nil
	case StrategyAuto, "":
		if preview == nil {
			return nil, errors.New("auto strategy requires a preview extractor")
		}
		if developer == nil {
			return preview, nil
		}
		return Chain{developer, preview}, nil
	default:
		return nil, fmt.Errorf("unknown thumbnail strategy %q (want %s, %s or %s)",
			name, StrategyDevelop, StrategyPreview, StrategyAuto)
	}
}
