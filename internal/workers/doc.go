/*
Package workers sizes worker pools from the CPUs a process may actually use.

Inside a container runtime.NumCPU() reports the host's CPUs, while
GOMAXPROCS follows the cgroup limit (Go 1.19+). Counts here are derived
from GOMAXPROCS:

	workers.Count(2.0, 16) // 2 per CPU, at most 16
	workers.ForMixed(8)    // 1.5 per CPU, at most 8

Ingestion is mixed work: each file is read, parsed and handed to a raw
developer that is itself multi-threaded. An explicit INGEST_WORKERS setting
wins; 0 means auto:

	n := workers.Resolve(cfg.IngestWorkers, 8)
*/
package workers
