// Package database provides SQLite storage for the raw gallery.
//
// It holds three entities:
//   - images, keyed by the absolute raw file path
//   - tags, keyed by their pipe-delimited hierarchical content
//   - image_tags, the many-to-many link between them
//
// Writers are serialized through a single mutex and each image is written
// with its tag links in one transaction. Failures are reported as
// *StorageError; Fatal distinguishes a broken store from a bad record.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
