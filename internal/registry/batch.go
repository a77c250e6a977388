package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchOptions controls BatchOperation chunking.
type BatchOptions struct {
	BatchSize       int
	ContinueOnError bool
	Delay           time.Duration // pause between chunks
}

// DefaultBatchOptions matches the pipeline defaults for store-bound batches.
var DefaultBatchOptions = BatchOptions{BatchSize: 10, ContinueOnError: true, Delay: 100 * time.Millisecond}

// BatchFailure pairs a failed item with its error.
type BatchFailure[T any] struct {
	Item T
	Err  error
}

// BatchResult separates successes from failures so the caller can report
// precisely which records made it.
type BatchResult[T any] struct {
	Successes []T
	Failures  []BatchFailure[T]
}

// BatchOperation partitions items into fixed-size chunks, runs op
// concurrently within each chunk, and pauses between chunks. When
// ContinueOnError is false the first failure aborts the remaining chunks;
// the partial result is still returned.
func BatchOperation[T any](ctx context.Context, items []T, op func(context.Context, T) error, opts BatchOptions) (*BatchResult[T], error) {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchOptions.BatchSize
	}

	result := &BatchResult[T]{}
	var mu sync.Mutex

	for start := 0; start < len(items); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		var g errgroup.Group
		for _, item := range chunk {
			g.Go(func() error {
				err := op(ctx, item)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failures = append(result.Failures, BatchFailure[T]{Item: item, Err: err})
					return err
				}
				result.Successes = append(result.Successes, item)
				return nil
			})
		}
		err := g.Wait()

		if err != nil && !opts.ContinueOnError {
			return result, err
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if end < len(items) && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}
	return result, nil
}
