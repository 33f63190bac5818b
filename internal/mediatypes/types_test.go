package mediatypes

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSidecarPathAppendsExtension(t *testing.T) {
	assert.Equal(t, "/photos/2018/IMG_0001.CR2.xmp", SidecarPath("/photos/2018/IMG_0001.CR2"))
	assert.Equal(t, "/photos/a.b.nef.xmp", SidecarPath("/photos/a.b.nef"))
}

func TestRawExtensions(t *testing.T) {
	exts := NewRawExtensions(DefaultRawExtensions)

	tests := []struct {
		path string
		want bool
	}{
		{"/photos/IMG_0001.CR2", true},
		{"/photos/IMG_0001.cr2", true},
		{"/photos/DSC_1234.NEF", true},
		{"/photos/IMG_0001.CR2.xmp", false},
		{"/photos/IMG_0001.JPG", false},
		{"/photos/README", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, exts.IsRaw(tt.path))
		})
	}
}

func TestParseRawExtensions(t *testing.T) {
	exts := ParseRawExtensions(" CR2, nef ,,.Dng")
	list := exts.List()
	sort.Strings(list)
	assert.Equal(t, []string{".cr2", ".dng", ".nef"}, list)
	assert.True(t, exts.IsRaw("x.DNG"))
}
