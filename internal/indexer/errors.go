package indexer

import (
	"context"
	"errors"

	"rawgallery/internal/database"
	"rawgallery/internal/media"
	"rawgallery/internal/xmp"
)

// FailureKind classifies why a file was skipped.
type FailureKind string

const (
	FailureParse      FailureKind = "parse"
	FailureDerivation FailureKind = "derivation"
	FailureStorage    FailureKind = "storage"
	FailureCanceled   FailureKind = "canceled"
	FailureOther      FailureKind = "other"
)

var (
	// ErrRunAborted is returned by Run when the store became unusable
	// mid-run. The remaining files were not attempted.
	ErrRunAborted = errors.New("ingestion run aborted")
	// ErrRunInProgress is returned by Run while another run is active.
	ErrRunInProgress = errors.New("ingestion run already in progress")
)

// Classify returns the failure kind of a per-file error. A query that timed
// out inside the store counts as a storage failure, not a cancellation.
func Classify(err error) FailureKind {
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}

	var parseErr *xmp.ParseError
	if errors.As(err, &parseErr) {
		return FailureParse
	}
	var derivErr *media.DerivationError
	if errors.As(err, &derivErr) {
		return FailureDerivation
	}
	var storageErr *database.StorageError
	if errors.As(err, &storageErr) {
		return FailureStorage
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	return FailureOther
}
