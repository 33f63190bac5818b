package media

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // baseline TIFF fallback for TIFF-based raws

	"rawgallery/internal/logging"
)

// orient applies a TIFF/EXIF orientation value (1-8) to img.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// fit decodes an encoded image and scales it to fit within size x size,
// preferring libvips when it is up.
func fit(data []byte, size int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := fitWithVips(data, size)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips resize failed, falling back to imaging: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(false))
	if err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return imaging.Fit(img, size, size, imaging.Lanczos), nil
}

// writeJPEG encodes img to a new file at path. It refuses to overwrite.
func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		_ = f.Close()
		removePartial(path)
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		removePartial(path)
		return err
	}
	return nil
}
