package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testPaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/photos/IMG_%04d.CR2", i)
	}
	return paths
}

func TestProcessAllVisitsEveryPath(t *testing.T) {
	paths := testPaths(50)

	var mu sync.Mutex
	seen := make(map[string]int)

	var handled int
	processAll(context.Background(), paths, 4,
		func(_ context.Context, path string) (Outcome, error) {
			mu.Lock()
			seen[path]++
			mu.Unlock()
			return OutcomeIngested, nil
		},
		func(res fileResult) bool {
			handled++
			assert.Equal(t, OutcomeIngested, res.outcome)
			return true
		},
	)

	assert.Equal(t, len(paths), handled)
	assert.Len(t, seen, len(paths))
	for path, count := range seen {
		assert.Equal(t, 1, count, path)
	}
}

func TestProcessAllStopsWhenHandlerRefuses(t *testing.T) {
	paths := testPaths(100)

	var processed atomic.Int32
	var handled int
	processAll(context.Background(), paths, 1,
		func(_ context.Context, _ string) (Outcome, error) {
			processed.Add(1)
			return OutcomeFailed, assert.AnError
		},
		func(fileResult) bool {
			handled++
			return false
		},
	)

	assert.GreaterOrEqual(t, handled, 1)
	assert.Less(t, int(processed.Load()), len(paths))
}

func TestProcessAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var processed atomic.Int32
	processAll(ctx, testPaths(10), 2,
		func(_ context.Context, _ string) (Outcome, error) {
			processed.Add(1)
			return OutcomeIngested, nil
		},
		func(fileResult) bool { return true },
	)

	assert.Zero(t, processed.Load())
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 3, workerCount(3))
	n := workerCount(0)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, maxAutoWorkers)
}
