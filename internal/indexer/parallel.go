package indexer

import (
	"context"
	"sync"

	"rawgallery/internal/workers"
)

// maxAutoWorkers caps the worker count picked from the available CPUs.
// Each developer invocation is itself multi-threaded.
const maxAutoWorkers = 8

func workerCount(n int) int {
	return workers.Resolve(n, maxAutoWorkers)
}

// fileResult is the outcome of one file.
type fileResult struct {
	path    string
	outcome Outcome
	err     error
}

// processAll runs process over paths on numWorkers goroutines and hands each
// result to handle on the calling goroutine. When handle returns false the
// pool is canceled: files not yet started are dropped and files in flight see
// a canceled context. Cancellation of ctx is observed between files.
func processAll(
	ctx context.Context,
	paths []string,
	numWorkers int,
	process func(ctx context.Context, path string) (Outcome, error),
	handle func(fileResult) bool,
) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan fileResult, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				outcome, err := process(ctx, path)
				results <- fileResult{path: path, outcome: outcome, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if !handle(res) {
			cancel()
		}
	}
}
