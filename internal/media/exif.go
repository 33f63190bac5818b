package media

import (
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"rawgallery/internal/filesystem"
	"rawgallery/internal/logging"
)

// CaptureTime reads DateTimeOriginal (or DateTime) from the EXIF data of a
// raw file. It returns nil without error when the file carries no capture
// date.
func CaptureTime(path string) (*time.Time, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close raw file %s: %v", path, err)
		}
	}()

	x, err := exif.Decode(f)
	if x == nil {
		return nil, err
	}
	if err != nil && exif.IsCriticalError(err) {
		return nil, err
	}

	t, err := x.DateTime()
	if err != nil {
		if exif.IsTagNotPresentError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
