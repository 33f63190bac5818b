// Package tags turns raw hierarchical keyword strings from sidecars into
// stored tags.
//
// A raw string such as "Family|Smith|Alice" is split on '|' into segments
// ordered root to leaf. Segments are trimmed and empty ones dropped; case is
// preserved, so "Alice" and "alice" are different tags. Two strings with the
// same resulting segments always resolve to the same stored tag.
package tags
