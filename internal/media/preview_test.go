package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xtiff "golang.org/x/image/tiff"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() string {
	s.next++
	return fmt.Sprintf("thumb-%d", s.next)
}

// rawWithPreviews builds a NEF/DNG-like file: IFD0 carries the orientation
// and a SubIFD list, IFD1 a tiny thumbnail, one SubIFD a JPEG preview and
// another the (undecodable) sensor data.
func rawWithPreviews(t *testing.T, orientation uint16, preview []byte) []byte {
	t.Helper()

	tt := newTestTIFF()
	thumb := testJPEG(t, 32, 16)
	thumbOffset := tt.blob(thumb)
	previewOffset := tt.blob(preview)
	sensor := append([]byte{0xFF, 0xD8, 0xFF, 0xC3}, bytes.Repeat([]byte{0x42}, len(preview)*2)...)
	sensorOffset := tt.blob(sensor)

	previewIFD := tt.dir(0,
		shortEntry(tagCompression, compressionJPEG),
		shortEntry(tagPhotometric, 6),
		longEntry(tagStripOffsets, previewOffset),
		longEntry(tagStripByteCounts, uint32(len(preview))),
	)
	sensorIFD := tt.dir(0,
		shortEntry(tagCompression, compressionJPEG),
		shortEntry(tagPhotometric, photometricCFA),
		longEntry(tagStripOffsets, sensorOffset),
		longEntry(tagStripByteCounts, uint32(len(sensor))),
	)
	ifd1 := tt.dir(0,
		longEntry(tagJPEGOffset, thumbOffset),
		longEntry(tagJPEGLength, uint32(len(thumb))),
	)
	ifd0 := tt.dir(ifd1,
		shortEntry(tagOrientation, orientation),
		longEntry(tagSubIFDs, sensorIFD, previewIFD),
	)
	return tt.bytes(ifd0)
}

func writeRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "IMG_0001.NEF")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}

func TestPreviewExtractorPicksLargestPreview(t *testing.T) {
	raw := writeRaw(t, rawWithPreviews(t, 1, testJPEG(t, 400, 200)))
	outDir := t.TempDir()

	p := &PreviewExtractor{Size: 100, Quality: 80, IDs: &sequenceIDs{}}
	thumb, err := p.Derive(context.Background(), raw, raw+".xmp", outDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "thumb-1.jpg"), thumb)
	w, h := decodeSize(t, thumb)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestPreviewExtractorAppliesOrientation(t *testing.T) {
	raw := writeRaw(t, rawWithPreviews(t, 6, testJPEG(t, 400, 200)))

	p := &PreviewExtractor{Size: 100, IDs: &sequenceIDs{}}
	thumb, err := p.Derive(context.Background(), raw, "", t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, thumb)
	assert.Equal(t, 50, w)
	assert.Equal(t, 100, h)
}

func TestPreviewExtractorSkipsBrokenPreview(t *testing.T) {
	broken := append([]byte{0xFF, 0xD8}, bytes.Repeat([]byte{0x00}, 4096)...)
	raw := writeRaw(t, rawWithPreviews(t, 1, broken))

	p := &PreviewExtractor{Size: 100, IDs: &sequenceIDs{}}
	thumb, err := p.Derive(context.Background(), raw, "", t.TempDir())
	require.NoError(t, err)

	// Only the 32x16 IFD1 thumbnail is left
	w, h := decodeSize(t, thumb)
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
}

func TestPreviewExtractorBaselineTIFFFallback(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 150))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)

	var buf bytes.Buffer
	require.NoError(t, xtiff.Encode(&buf, img, nil))
	raw := writeRaw(t, buf.Bytes())

	p := &PreviewExtractor{Size: 60, IDs: &sequenceIDs{}}
	thumb, err := p.Derive(context.Background(), raw, "", t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, thumb)
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)
}

func TestPreviewExtractorNoPreview(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a tiff", []byte("definitely not a raw file")},
		{"truncated raf", rafWithPreview(testJPEG(t, 64, 64))[:120]},
		{"tiff without images", func() []byte {
			tt := newTestTIFF()
			return tt.bytes(tt.dir(0, shortEntry(tagOrientation, 1)))
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := writeRaw(t, tt.data)
			outDir := t.TempDir()

			p := &PreviewExtractor{Size: 100, IDs: &sequenceIDs{}}
			thumb, err := p.Derive(context.Background(), raw, "", outDir)
			assert.Empty(t, thumb)

			var derr *DerivationError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, StrategyPreview, derr.Strategy)
			assert.Equal(t, raw, derr.Path)
			assert.ErrorIs(t, err, ErrNoPreview)

			entries, err := os.ReadDir(outDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestPreviewExtractorMissingRaw(t *testing.T) {
	p := NewPreviewExtractor()
	_, err := p.Derive(context.Background(), filepath.Join(t.TempDir(), "gone.cr2"), "", t.TempDir())

	var derr *DerivationError
	require.True(t, errors.As(err, &derr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPreviewExtractorUniqueNames(t *testing.T) {
	raw := writeRaw(t, rawWithPreviews(t, 1, testJPEG(t, 64, 64)))
	outDir := t.TempDir()

	p := NewPreviewExtractor()
	first, err := p.Derive(context.Background(), raw, "", outDir)
	require.NoError(t, err)
	second, err := p.Derive(context.Background(), raw, "", outDir)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.FileExists(t, first)
	assert.FileExists(t, second)
}

func TestPreviewExtractorRefusesOverwrite(t *testing.T) {
	raw := writeRaw(t, rawWithPreviews(t, 1, testJPEG(t, 64, 64)))
	outDir := t.TempDir()
	existing := filepath.Join(outDir, "thumb-1.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	p := &PreviewExtractor{Size: 100, IDs: &sequenceIDs{}}
	_, err := p.Derive(context.Background(), raw, "", outDir)
	require.Error(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestPreviewExtractorCanceled(t *testing.T) {
	raw := writeRaw(t, rawWithPreviews(t, 1, testJPEG(t, 64, 64)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPreviewExtractor().Derive(ctx, raw, "", t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadLayout(t *testing.T) {
	data := rawWithPreviews(t, 8, testJPEG(t, 100, 50))

	layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 8, layout.orientation)
	// Sensor data is excluded by its photometric interpretation
	require.Len(t, layout.candidates, 2)
	assert.Greater(t, layout.candidates[0].length, layout.candidates[1].length)

	_, err = readLayout(bytes.NewReader([]byte("short")), 5)
	assert.ErrorIs(t, err, errNotTIFF)
}

func TestOrient(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	tests := []struct {
		orientation int
		w, h        int
	}{
		{0, 4, 2}, {1, 4, 2}, {2, 4, 2}, {3, 4, 2}, {4, 4, 2},
		{5, 2, 4}, {6, 2, 4}, {7, 2, 4}, {8, 2, 4},
	}

	for _, tt := range tests {
		got := orient(src, tt.orientation).Bounds()
		assert.Equal(t, tt.w, got.Dx(), "orientation %d", tt.orientation)
		assert.Equal(t, tt.h, got.Dy(), "orientation %d", tt.orientation)
	}
}
