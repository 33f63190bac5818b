package database

import (
	"strings"
	"time"
)

// TagSeparator joins the segments of a hierarchical tag, root first.
const TagSeparator = "|"

// PageSize is the fixed number of images per ListImages page.
const PageSize = 50

// Image is one ingested raw photo. LastModified is the effective
// modification time it was ingested at: the later of the raw file's and its
// sidecar's mtime, not the raw file's alone.
type Image struct {
	ID           int64      `json:"id"`
	Path         string     `json:"path"`
	Rating       int        `json:"rating"`
	LastModified time.Time  `json:"lastModified"`
	ThumbPath    string     `json:"thumbPath"`
	CaptureTime  *time.Time `json:"captureTime,omitempty"`
	Tags         []Tag      `json:"tags,omitempty"`
}

// ImageFields are the mutable columns of an image, written on every
// (re)ingestion. LastModified is the effective mtime, as in Image.
type ImageFields struct {
	Rating       int
	LastModified time.Time
	ThumbPath    string
	CaptureTime  *time.Time
}

// Tag is a hierarchical tag. Content is unique across the table.
type Tag struct {
	ID         int64    `json:"id"`
	Content    []string `json:"content"`
	ImageCount int      `json:"imageCount,omitempty"`
}

// String returns the tag in its pipe-delimited form.
func (t Tag) String() string {
	return JoinTag(t.Content)
}

// JoinTag encodes segments the way tags are stored.
func JoinTag(segments []string) string {
	return strings.Join(segments, TagSeparator)
}

// SplitTag decodes a stored tag. It does not trim; see tags.Split for
// normalizing user input.
func SplitTag(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, TagSeparator)
}

// ImageFilter narrows ListImages. Zero values disable a criterion.
type ImageFilter struct {
	MinRating int        `json:"minRating,omitempty"`
	DateFrom  *time.Time `json:"dateFrom,omitempty"`
	DateTo    *time.Time `json:"dateTo,omitempty"`
	// Tags matches images carrying any of the listed tags or one of their
	// descendants.
	Tags [][]string `json:"tags,omitempty"`
}

// ImagePage is one page of a filtered image listing.
type ImagePage struct {
	Items      []Image `json:"items"`
	TotalItems int     `json:"totalItems"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}
