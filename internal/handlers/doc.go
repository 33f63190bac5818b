// Package handlers provides the HTTP handlers of the gallery API.
//
// It includes handlers for:
//   - Listing images with rating, capture date and tag filters
//   - Single images and the tag catalog
//   - Serving derived thumbnails
//   - Health checks, version info and manual re-ingestion
package handlers
