// Package fanout runs one unit of work per item with bounded parallelism.
package fanout

import (
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency is the worker bound used when none is configured.
const DefaultMaxConcurrency = 10

// Run calls worker once for every item, with at most maxConcurrency calls in
// flight, and returns the results in input order. It waits for every call to
// finish. A worker that panics does not affect the others: its slot is
// filled by onPanic instead, or left zero when onPanic is nil. Values of
// maxConcurrency below 1 mean 1.
func Run[T, R any](items []T, maxConcurrency int, worker func(T) R, onPanic func(T, any) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = call(item, worker, onPanic)
			return nil
		})
	}
	g.Wait()

	return results
}

func call[T, R any](item T, worker func(T) R, onPanic func(T, any) R) (result R) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			result = onPanic(item, r)
		}
	}()
	return worker(item)
}
