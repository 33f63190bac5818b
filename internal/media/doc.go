// Package media derives JPEG thumbnails from camera raw files.
//
// Two strategies implement Deriver:
//   - Developer runs an external raw developer (darktable-cli by default)
//     with the file's XMP sidecar, so edits such as crop and white balance
//     show up in the thumbnail.
//   - PreviewExtractor pulls the largest embedded JPEG preview out of a
//     TIFF-based raw file and resizes it with libvips or imaging.
//
// Chain tries strategies in order. Every derivation writes a new file named
// by an IDGenerator into the output directory and never overwrites one.
package media
