// Package memory keeps ingestion inside a container's memory limit.
//
// Decoding raw previews and running libvips allocate large buffers outside
// the Go heap's control, so a gallery on a small NAS container can be
// OOM-killed during a big first ingestion. The package does two things:
//
//   - [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (for example the
//     Kubernetes Downward API value) scaled by MEMORY_RATIO, unless GOMEMLIMIT
//     is already set.
//   - [Monitor] samples heap usage against that limit. Above the critical
//     mark it pauses ingestion workers (see [Monitor.Wait]) and forces a GC;
//     below the high-water mark they resume.
//
// With no limit configured the monitor never pauses.
package memory
