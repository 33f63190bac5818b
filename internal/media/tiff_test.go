package media

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// testTIFF assembles little-endian TIFF files for tests. Blobs and
// out-of-line values are appended as they come, directories reference them
// by offset, so later directories in a chain must be written first.
type testTIFF struct {
	buf bytes.Buffer
}

type testEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func newTestTIFF() *testTIFF {
	t := &testTIFF{}
	t.buf.Write(make([]byte, 8))
	return t
}

func shortEntry(tag uint16, v uint16) testEntry {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return testEntry{tag: tag, typ: 3, count: 1, data: data}
}

func longEntry(tag uint16, values ...uint32) testEntry {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return testEntry{tag: tag, typ: 4, count: uint32(len(values)), data: data}
}

func asciiEntry(tag uint16, s string) testEntry {
	data := append([]byte(s), 0)
	return testEntry{tag: tag, typ: 2, count: uint32(len(data)), data: data}
}

// blob appends data and returns its offset.
func (t *testTIFF) blob(data []byte) uint32 {
	offset := uint32(t.buf.Len())
	t.buf.Write(data)
	if t.buf.Len()%2 == 1 {
		t.buf.WriteByte(0)
	}
	return offset
}

// dir appends an IFD pointing at next and returns its offset.
func (t *testTIFF) dir(next uint32, entries ...testEntry) uint32 {
	valueOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			valueOffsets[i] = t.blob(e.data)
		}
	}

	offset := uint32(t.buf.Len())
	le := binary.LittleEndian
	_ = binary.Write(&t.buf, le, uint16(len(entries)))
	for i, e := range entries {
		_ = binary.Write(&t.buf, le, e.tag)
		_ = binary.Write(&t.buf, le, e.typ)
		_ = binary.Write(&t.buf, le, e.count)
		if len(e.data) > 4 {
			_ = binary.Write(&t.buf, le, valueOffsets[i])
		} else {
			padded := make([]byte, 4)
			copy(padded, e.data)
			t.buf.Write(padded)
		}
	}
	_ = binary.Write(&t.buf, le, next)
	return offset
}

// bytes finalizes the header with the offset of IFD0.
func (t *testTIFF) bytes(ifd0 uint32) []byte {
	b := t.buf.Bytes()
	copy(b[:4], "II*\x00")
	binary.LittleEndian.PutUint32(b[4:8], ifd0)
	return b
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}
