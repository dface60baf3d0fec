// Package fanout runs a task over a list in contiguous, strictly sequential batches.
package fanout

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Result summarises one Batches run.
type Result struct {
	Batches int
	Sent    int
	Failed  int
}

// Batches partitions items into contiguous batches of size and calls fn for every
// item of a batch concurrently, waiting for the whole batch to settle before the next
// one starts. At most size calls are in flight at any instant. A failing call is
// counted and never aborts the run; only ctx cancellation stops it between batches.
func Batches[T any](ctx context.Context, items []T, size int, fn func(context.Context, T) error) (Result, error) {
	if size < 1 {
		size = 1
	}

	var res Result
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch := items[start:min(start+size, len(items))]

		var (
			g      errgroup.Group
			failed atomic.Int64
		)
		g.SetLimit(size)
		for _, item := range batch {
			g.Go(func() error {
				if err := fn(ctx, item); err != nil {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		f := int(failed.Load())
		res.Batches++
		res.Failed += f
		res.Sent += len(batch) - f
	}

	return res, nil
}
