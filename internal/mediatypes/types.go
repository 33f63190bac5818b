package mediatypes

import (
	"path/filepath"
	"strings"
)

// SidecarExtension is appended (not substituted) to a raw file's name to
// locate its sidecar: IMG_0001.CR2 -> IMG_0001.CR2.xmp.
const SidecarExtension = ".xmp"

// DefaultRawExtensions lists the camera raw formats ingested by default.
var DefaultRawExtensions = []string{
	".cr2", ".cr3", ".nef", ".arw", ".dng", ".orf", ".rw2", ".raf", ".pef",
}

// RawExtensions is a case-insensitive set of raw file extensions.
type RawExtensions map[string]bool

// NewRawExtensions builds a set from extensions with or without a leading dot.
func NewRawExtensions(exts []string) RawExtensions {
	set := make(RawExtensions, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// ParseRawExtensions parses a comma-separated extension list.
func ParseRawExtensions(list string) RawExtensions {
	return NewRawExtensions(strings.Split(list, ","))
}

// IsRaw reports whether path has one of the configured raw extensions.
func (r RawExtensions) IsRaw(path string) bool {
	return r[strings.ToLower(filepath.Ext(path))]
}

// List returns the extensions in the set.
func (r RawExtensions) List() []string {
	exts := make([]string, 0, len(r))
	for ext := range r {
		exts = append(exts, ext)
	}
	return exts
}

// SidecarPath returns the sidecar location for a raw file, keeping the
// original extension.
func SidecarPath(rawPath string) string {
	return rawPath + SidecarExtension
}
