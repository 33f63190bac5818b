package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/tiff"

	"rawgallery/internal/filesystem"
	"rawgallery/internal/logging"
)

// TIFF tags consulted when looking for embedded previews.
const (
	tagCompression     = 0x0103
	tagPhotometric     = 0x0106
	tagStripOffsets    = 0x0111
	tagOrientation     = 0x0112
	tagStripByteCounts = 0x0117
	tagSubIFDs         = 0x014A
	tagJPEGOffset      = 0x0201
	tagJPEGLength      = 0x0202
)

const (
	compressionOldJPEG = 6
	compressionJPEG    = 7

	photometricCFA       = 32803
	photometricLinearRaw = 34892

	// Upper bound on directories visited per file, guards against loops.
	maxIFDs = 32
)

var errNotTIFF = errors.New("not a TIFF-based raw file")

// PreviewExtractor derives thumbnails from the JPEG previews camera makers
// embed in raw files: TIFF-based ones (CR2, NEF, ARW, DNG, ORF, PEF, RW2),
// Fujifilm RAF and Canon CR3. When no embedded JPEG is usable it falls back to
// decoding the file as a baseline TIFF.
type PreviewExtractor struct {
	Size    int
	Quality int
	IDs     IDGenerator
}

// NewPreviewExtractor creates an extractor with default size and quality.
func NewPreviewExtractor() *PreviewExtractor {
	return &PreviewExtractor{
		Size:    DefaultSize,
		Quality: DefaultQuality,
		IDs:     UUIDGenerator{},
	}
}

// Strategy implements Deriver.
func (p *PreviewExtractor) Strategy() string {
	return StrategyPreview
}

// Derive implements Deriver. The sidecar is not consulted.
func (p *PreviewExtractor) Derive(ctx context.Context, rawPath, _ string, outDir string) (thumbPath string, err error) {
	start := time.Now()
	defer func() { observe(StrategyPreview, start, err) }()

	fail := func(err error) (string, error) {
		return "", &DerivationError{Path: rawPath, Strategy: StrategyPreview, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	img, err := p.decodePreview(rawPath)
	if err != nil {
		return fail(err)
	}

	quality := p.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	outPath := thumbnailPath(p.IDs, outDir)
	if err := writeJPEG(outPath, img, quality); err != nil {
		return fail(err)
	}

	logging.Debug("Extracted preview for %s: %dx%d -> %s", rawPath, img.Bounds().Dx(), img.Bounds().Dy(), outPath)
	return outPath, nil
}

func (p *PreviewExtractor) size() int {
	if p.Size <= 0 {
		return DefaultSize
	}
	return p.Size
}

// decodePreview returns the oriented, resized preview of rawPath.
func (p *PreviewExtractor) decodePreview(rawPath string) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(rawPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close raw file %s: %v", rawPath, err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	layout, err := readLayout(f, info.Size())
	if err != nil {
		logging.Debug("No preview layout in %s: %v", rawPath, err)
		layout = &previewLayout{}
	}

	for _, c := range layout.candidates {
		section := io.NewSectionReader(f, c.offset, c.length)

		// Lossless raw data also starts with a JPEG SOI marker but is not
		// something image/jpeg can decode; reject it from the header alone.
		cfg, err := jpeg.DecodeConfig(section)
		if err != nil {
			logging.Debug("Skipping embedded image at %d in %s: %v", c.offset, rawPath, err)
			continue
		}

		data := make([]byte, c.length)
		if _, err := f.ReadAt(data, c.offset); err != nil {
			logging.Debug("Failed to read embedded preview at %d in %s: %v", c.offset, rawPath, err)
			continue
		}

		img, err := fit(data, p.size())
		if err != nil {
			logging.Debug("Failed to decode %dx%d preview in %s: %v", cfg.Width, cfg.Height, rawPath, err)
			continue
		}
		return orient(img, layout.orientation), nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPreview, err)
	}

	logging.Debug("Decoded %s as %s image", rawPath, format)
	return orient(imaging.Fit(img, p.size(), p.size(), imaging.Lanczos), layout.orientation), nil
}

type span struct {
	offset int64
	length int64
}

// previewLayout is what readLayout learns about a raw file.
type previewLayout struct {
	orientation int
	// candidates are possible JPEG previews, largest first.
	candidates []span
}

// readLayout finds the embedded JPEG streams of a raw file, dispatching on
// its container format.
func readLayout(r io.ReaderAt, size int64) (*previewLayout, error) {
	header := make([]byte, 16)
	n, _ := io.ReadFull(io.NewSectionReader(r, 0, size), header)
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte(rafMagic)):
		return readRAFLayout(r, size)
	case len(header) >= 12 && string(header[4:12]) == cr3Brand:
		return readCR3Layout(r, size)
	}
	return readTIFFLayout(r, size)
}

// readTIFFLayout walks the IFD chain of a TIFF-based raw file, including
// SubIFDs, and records every embedded JPEG stream it finds.
func readTIFFLayout(r io.ReaderAt, size int64) (*previewLayout, error) {
	sr := io.NewSectionReader(r, 0, size)

	header := make([]byte, 8)
	if _, err := io.ReadFull(sr, header); err != nil {
		return nil, errNotTIFF
	}

	var order binary.ByteOrder
	switch string(header[:4]) {
	case "II*\x00", "IIRO", "IIRS", "IIU\x00": // TIFF, ORF, RW2
		order = binary.LittleEndian
	case "MM\x00*":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}

	first := int64(order.Uint32(header[4:]))
	layout := &previewLayout{}
	seen := make(map[int64]bool)
	queue := []int64{first}

	for len(queue) > 0 && len(seen) < maxIFDs {
		offset := queue[0]
		queue = queue[1:]

		if offset < 8 || offset >= size || seen[offset] {
			continue
		}
		seen[offset] = true

		if _, err := sr.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		dir, next, err := tiff.DecodeDir(sr, order)
		if err != nil {
			// One unreadable directory does not hide the others
			logging.Debug("Skipping IFD at %d: %v", offset, err)
			continue
		}

		if offset == first {
			if o, ok := tagValue(dir, tagOrientation); ok {
				layout.orientation = int(o)
			}
		}

		if c, ok := jpegSpan(dir); ok && c.offset+c.length <= size {
			layout.candidates = append(layout.candidates, c)
		}

		queue = append(queue, tagValues(dir, tagSubIFDs)...)
		if next > 0 {
			queue = append(queue, int64(next))
		}
	}

	sort.SliceStable(layout.candidates, func(i, j int) bool {
		return layout.candidates[i].length > layout.candidates[j].length
	})
	return layout, nil
}

// jpegSpan returns the JPEG stream a directory points to, if any.
func jpegSpan(dir *tiff.Dir) (span, bool) {
	if offset, ok := tagValue(dir, tagJPEGOffset); ok {
		if length, ok := tagValue(dir, tagJPEGLength); ok && offset > 0 && length > 0 {
			return span{offset: offset, length: length}, true
		}
	}

	compression, _ := tagValue(dir, tagCompression)
	if compression != compressionJPEG && compression != compressionOldJPEG {
		return span{}, false
	}
	if photometric, ok := tagValue(dir, tagPhotometric); ok &&
		(photometric == photometricCFA || photometric == photometricLinearRaw) {
		return span{}, false
	}

	offsets := tagValues(dir, tagStripOffsets)
	counts := tagValues(dir, tagStripByteCounts)
	if len(offsets) != 1 || len(counts) != 1 || offsets[0] <= 0 || counts[0] <= 0 {
		return span{}, false
	}
	return span{offset: offsets[0], length: counts[0]}, true
}

func findTag(dir *tiff.Dir, id uint16) *tiff.Tag {
	for _, t := range dir.Tags {
		if t.Id == id {
			return t
		}
	}
	return nil
}

func tagValue(dir *tiff.Dir, id uint16) (int64, bool) {
	t := findTag(dir, id)
	if t == nil || t.Count == 0 {
		return 0, false
	}
	v, err := t.Int64(0)
	return v, err == nil
}

func tagValues(dir *tiff.Dir, id uint16) []int64 {
	t := findTag(dir, id)
	if t == nil {
		return nil
	}

	values := make([]int64, 0, t.Count)
	for i := 0; i < int(t.Count); i++ {
		v, err := t.Int64(i)
		if err != nil {
			return nil
		}
		values = append(values, v)
	}
	return values
}
