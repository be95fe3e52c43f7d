package parse

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RowRange is a half-open range [Start, End) of rows assigned to one
// worker. Index is the range's position in the overall partition.
type RowRange struct {
	Index int
	Start int
	End   int
}

// Len returns the number of rows in the range
func (r RowRange) Len() int {
	return r.End - r.Start
}

// Partition splits rows into consecutive ranges of at most chunk rows
func Partition(rows, chunk int) []RowRange {
	if rows <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = rows
	}
	ranges := make([]RowRange, 0, (rows+chunk-1)/chunk)
	for start := 0; start < rows; start += chunk {
		end := min(start+chunk, rows)
		ranges = append(ranges, RowRange{Index: len(ranges), Start: start, End: end})
	}
	return ranges
}

// RunOrdered runs work over every range on at most workers goroutines and
// returns the results in range order, independent of completion order.
// Workers share no mutable state. onDone (if set) is called on the calling
// goroutine after each completion with the running count; workers never
// call it. The first worker error cancels the remaining work and is returned.
func RunOrdered[T any](ctx context.Context, ranges []RowRange, workers int, work func(context.Context, RowRange) (T, error), onDone func(done, total int)) ([]T, error) {
	results := make([]T, len(ranges))
	if len(ranges) == 0 {
		return results, nil
	}
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	completed := make(chan int, len(ranges))
	errc := make(chan error, 1)

	go func() {
		for i, r := range ranges {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				v, err := work(gctx, r)
				if err != nil {
					return err
				}
				results[i] = v
				completed <- i
				return nil
			})
		}
		errc <- g.Wait()
		close(completed)
	}()

	done := 0
	for range completed {
		done++
		if onDone != nil {
			onDone(done, len(ranges))
		}
	}

	if err := <-errc; err != nil {
		return nil, err
	}
	return results, nil
}
