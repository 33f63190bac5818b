package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	rafMagic = "FUJIFILMCCD-RAW"
	// Big-endian offset and length of the embedded JPEG in a RAF header.
	rafJPEGPointer = 84

	cr3Brand = "ftypcrx "
	// Bytes from the start of a PRVW box to its JPEG data; the JPEG length
	// is the big-endian uint32 just before it.
	prvwHeaderLen = 24

	// Upper bound on top-level boxes visited in a CR3 file.
	maxBoxes = 64
)

// cr3PreviewUUID identifies the top-level uuid box holding the PRVW preview.
var cr3PreviewUUID = []byte{
	0xea, 0xf4, 0x2b, 0x5e, 0x1c, 0x98, 0x4b, 0x88,
	0xb9, 0xfb, 0xb7, 0xdc, 0x40, 0x6e, 0x4d, 0x16,
}

var errBadBox = errors.New("malformed ISO-BMFF box")

func readBytes(r io.ReaderAt, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(r, offset, int64(n)), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readRAFLayout(r io.ReaderAt, size int64) (*previewLayout, error) {
	ptr, err := readBytes(r, rafJPEGPointer, 8)
	if err != nil {
		return nil, fmt.Errorf("short RAF header: %w", err)
	}
	return embeddedJPEGLayout(r, size, span{
		offset: int64(binary.BigEndian.Uint32(ptr)),
		length: int64(binary.BigEndian.Uint32(ptr[4:])),
	}), nil
}

type box struct {
	typ    string
	size   int64
	header int64
}

// readBox reads the ISO-BMFF box header at offset. limit is the end of the
// enclosing container.
func readBox(r io.ReaderAt, offset, limit int64) (box, error) {
	h, err := readBytes(r, offset, 8)
	if err != nil {
		return box{}, err
	}
	b := box{typ: string(h[4:8]), size: int64(binary.BigEndian.Uint32(h)), header: 8}

	switch b.size {
	case 0:
		b.size = limit - offset
	case 1:
		ext, err := readBytes(r, offset+8, 8)
		if err != nil {
			return box{}, err
		}
		b.size = int64(binary.BigEndian.Uint64(ext))
		b.header = 16
	}
	if b.size < b.header || b.size > limit-offset {
		return box{}, errBadBox
	}
	return b, nil
}

// readCR3Layout walks the top-level boxes of a CR3 file looking for the
// preview uuid box.
func readCR3Layout(r io.ReaderAt, size int64) (*previewLayout, error) {
	var offset int64
	for i := 0; i < maxBoxes && offset+8 <= size; i++ {
		b, err := readBox(r, offset, size)
		if err != nil {
			return nil, fmt.Errorf("box at %d: %w", offset, err)
		}

		if b.typ == "uuid" && b.size >= b.header+16 {
			id, err := readBytes(r, offset+b.header, 16)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(id, cr3PreviewUUID) {
				if c, ok := findPRVW(r, offset+b.header+16, offset+b.size); ok {
					return embeddedJPEGLayout(r, size, c), nil
				}
			}
		}
		offset += b.size
	}
	return &previewLayout{}, nil
}

// findPRVW locates the PRVW box near the start of [start, end), which
// follows a few bytes of unknown purpose.
func findPRVW(r io.ReaderAt, start, end int64) (span, bool) {
	n := end - start
	if n > 64 {
		n = 64
	}
	head, err := readBytes(r, start, int(n))
	if err != nil {
		return span{}, false
	}
	i := bytes.Index(head, []byte("PRVW"))
	if i < 4 {
		return span{}, false
	}

	boxStart := start + int64(i) - 4
	hdr, err := readBytes(r, boxStart, prvwHeaderLen)
	if err != nil {
		return span{}, false
	}
	c := span{
		offset: boxStart + prvwHeaderLen,
		length: int64(binary.BigEndian.Uint32(hdr[prvwHeaderLen-4:])),
	}
	if c.offset+c.length > end {
		return span{}, false
	}
	return c, true
}

// embeddedJPEGLayout keeps the candidates that fit in the file. These
// previews carry their orientation in their own EXIF block.
func embeddedJPEGLayout(r io.ReaderAt, size int64, candidates ...span) *previewLayout {
	layout := &previewLayout{}
	for _, c := range candidates {
		if c.offset > 0 && c.length > 0 && c.offset+c.length <= size {
			layout.candidates = append(layout.candidates, c)
		}
	}
	if len(layout.candidates) == 0 {
		return layout
	}

	sort.SliceStable(layout.candidates, func(i, j int) bool {
		return layout.candidates[i].length > layout.candidates[j].length
	})
	first := layout.candidates[0]
	layout.orientation = jpegOrientation(io.NewSectionReader(r, first.offset, first.length))
	return layout
}

// jpegOrientation returns the EXIF orientation of a JPEG stream, or 0.
func jpegOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}
