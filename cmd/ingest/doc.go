// Command ingest runs one ingestion pass over the photo directory and exits.
//
// It reads the same environment (and optional .env file) as the server,
// so it can run from cron or a shell against the server's database:
//
//	ingest [-dir PATH] [-workers N] [-prune-thumbnails] [-v]
//
// Flags:
//
//	-dir               photo directory, overrides PHOTO_DIR
//	-workers           files processed at once (0 = auto), overrides INGEST_WORKERS
//	-prune-thumbnails  delete thumbnails no image references after the run
//	-v                 debug logging
//
// A progress line is shown when stdout is a terminal. Exit status is 0 on
// success, 1 when any file failed (or pruning failed), 2 for invalid
// configuration and 3 when the run was aborted or interrupted.
package main
