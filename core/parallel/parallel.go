// Package parallel runs independent units of work (trees, folds, grid
// candidates, prediction chunks) on a bounded number of goroutines.
//
// Results must be written into pre-indexed slots by the caller, so the output
// never depends on scheduling.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// Workers resolves an n_jobs setting into a goroutine count for items units
// of work. Negative values mean all CPUs, 0 and 1 mean sequential.
func Workers(nJobs, items int) int {
	n := nJobs
	if n < 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	if items > 0 && n > items {
		n = items
	}
	return n
}

// ForEach calls fn for every index in [0, n) with at most Workers(nJobs, n)
// calls in flight. The first error cancels the context handed to the other
// calls and is returned. A panicking call is reported as an
// errors.PanicError.
func ForEach(ctx context.Context, n, nJobs int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(nJobs, n))

	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer errors.Recover(&err, "parallel.ForEach")
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// Parallelize divides items into one contiguous range per CPU core and
// executes fn for each range (start, end) in parallel.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := Workers(-1, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold. Below it fn runs once over the whole range.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
