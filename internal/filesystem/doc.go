// Package filesystem provides filesystem helpers that tolerate stale NFS
// file handles.
//
// Photo libraries commonly live on network storage. A stat or open against a
// path whose NFS handle went stale fails with ESTALE even though the file is
// fine; the helpers here retry those calls with capped exponential backoff and
// return every other error immediately.
package filesystem
