package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rafWithPreview builds a Fujifilm RAF header pointing at preview.
func rafWithPreview(preview []byte) []byte {
	header := make([]byte, 100)
	copy(header, "FUJIFILMCCD-RAW 0201FF383501")
	binary.BigEndian.PutUint32(header[rafJPEGPointer:], uint32(len(header)))
	binary.BigEndian.PutUint32(header[rafJPEGPointer+4:], uint32(len(preview)))
	return append(header, preview...)
}

func isoBox(typ string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	b := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(b, uint32(8+len(body)))
	copy(b[4:], typ)
	return append(b, body...)
}

// cr3WithPreview builds a CR3-like file: ftyp, an empty moov, the preview
// uuid box with its PRVW box, then sensor data.
func cr3WithPreview(preview []byte, width, height uint16) []byte {
	prvw := make([]byte, prvwHeaderLen-8)
	binary.BigEndian.PutUint16(prvw[4:], 1)
	binary.BigEndian.PutUint16(prvw[6:], width)
	binary.BigEndian.PutUint16(prvw[8:], height)
	binary.BigEndian.PutUint16(prvw[10:], 1)
	binary.BigEndian.PutUint32(prvw[12:], uint32(len(preview)))

	return bytes.Join([][]byte{
		isoBox("ftyp", []byte("crx "), []byte{0, 0, 0, 1}, []byte("crx isom")),
		isoBox("moov"),
		isoBox("uuid", cr3PreviewUUID, make([]byte, 8), isoBox("PRVW", prvw, preview)),
		isoBox("mdat", bytes.Repeat([]byte{0x42}, 64)),
	}, nil)
}

// withOrientation inserts an EXIF APP1 segment carrying orientation right
// after the SOI marker of a JPEG stream.
func withOrientation(jpegData []byte, orientation uint16) []byte {
	tt := newTestTIFF()
	app1 := append([]byte("Exif\x00\x00"), tt.bytes(tt.dir(0, shortEntry(tagOrientation, orientation)))...)

	out := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(out[4:], uint16(len(app1)+2))
	out = append(out, app1...)
	return append(out, jpegData[2:]...)
}

func TestPreviewExtractorContainerFormats(t *testing.T) {
	preview := testJPEG(t, 400, 200)

	tests := []struct {
		name string
		data []byte
		w, h int
	}{
		{"raf", rafWithPreview(preview), 100, 50},
		{"raf rotated", rafWithPreview(withOrientation(preview, 6)), 50, 100},
		{"cr3", cr3WithPreview(preview, 400, 200), 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := writeRaw(t, tt.data)

			p := &PreviewExtractor{Size: 100, IDs: &sequenceIDs{}}
			thumb, err := p.Derive(context.Background(), raw, "", t.TempDir())
			require.NoError(t, err)

			w, h := decodeSize(t, thumb)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestReadLayoutContainers(t *testing.T) {
	preview := testJPEG(t, 64, 32)

	t.Run("raf", func(t *testing.T) {
		data := rafWithPreview(preview)
		layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, []span{{offset: 100, length: int64(len(preview))}}, layout.candidates)
		assert.Equal(t, 0, layout.orientation)
	})

	t.Run("raf orientation", func(t *testing.T) {
		data := rafWithPreview(withOrientation(preview, 8))
		layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, 8, layout.orientation)
	})

	t.Run("cr3", func(t *testing.T) {
		data := cr3WithPreview(preview, 64, 32)
		layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		want := span{offset: int64(bytes.Index(data, preview)), length: int64(len(preview))}
		assert.Equal(t, []span{want}, layout.candidates)
	})

	t.Run("raf pointing past the end", func(t *testing.T) {
		data := rafWithPreview(preview)[:200]
		layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Empty(t, layout.candidates)
	})

	t.Run("cr3 without preview box", func(t *testing.T) {
		data := bytes.Join([][]byte{
			isoBox("ftyp", []byte("crx "), []byte{0, 0, 0, 1}),
			isoBox("mdat", bytes.Repeat([]byte{0x42}, 16)),
		}, nil)
		layout, err := readLayout(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Empty(t, layout.candidates)
	})

	t.Run("cr3 with oversized box", func(t *testing.T) {
		data := cr3WithPreview(preview, 64, 32)
		binary.BigEndian.PutUint32(data[24:], 1<<30)
		_, err := readLayout(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, errBadBox)
	})
}
