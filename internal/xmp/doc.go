// Package xmp extracts the star rating and the hierarchical keywords from an
// XMP sidecar.
//
// The parser is a single streaming pass over encoding/xml tokens; it never
// builds a document tree. Only two things are read: the xmp:Rating value and
// the text nodes beneath lr:hierarchicalSubject, each of which holds one
// pipe-delimited tag path such as "Family|Smith|Alice". A sidecar without a
// rating fails with a *ParseError wrapping ErrNoRating.
package xmp
