package sweep

import (
	"context"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region types

// Options configure a sweep.
type Options struct {
	Workers int  // <= 0 uses runtime.NumCPU()
	Isolate bool // keep going past failures; each Result carries its own error
	Retries int  // extra attempts per failing item, isolated mode only
	Logger  *zap.Logger
}

// Result is the outcome for one input item.
type Result[R any] struct {
	Index    int
	Value    R
	Err      error
	Attempts int
}

// Func evaluates one item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// #endregion types

// #region run

// Run applies fn to every item on a fixed-size worker pool and returns the
// results in input order. It blocks until all items finish.
//
// Without Isolate the first failure cancels the remaining work and Run
// returns that error with no results. With Isolate every item runs to
// completion (after up to Retries retries) and Run only returns an error
// when ctx is cancelled.
func Run[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options) ([]Result[R], error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, span := otel.Tracer("xuvcal/sweep").Start(ctx, "sweep.Run", trace.WithAttributes(
		attribute.Int("items", len(items)),
		attribute.Int("workers", workers),
		attribute.Bool("isolate", opts.Isolate),
	))
	defer span.End()

	results := make([]Result[R], len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := attempt(gctx, i, items[i], fn, opts)
			results[i] = res
			if res.Err == nil {
				return nil
			}
			if opts.Isolate {
				logger.Warn("sweep item failed",
					zap.Int("index", i),
					zap.Int("attempts", res.Attempts),
					zap.Error(res.Err))
				return nil
			}
			return fmt.Errorf("sweep item %d: %w", i, res.Err)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	logger.Debug("sweep complete", zap.Int("items", len(items)), zap.Int("failed", Failed(results)))
	return results, nil
}

func attempt[T, R any](ctx context.Context, i int, item T, fn Func[T, R], opts Options) Result[R] {
	tries := 1
	if opts.Isolate && opts.Retries > 0 {
		tries += opts.Retries
	}
	res := Result[R]{Index: i}
	for n := 1; n <= tries; n++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		res.Attempts = n
		res.Value, res.Err = fn(ctx, item)
		if res.Err == nil {
			return res
		}
	}
	return res
}

// #endregion run

// #region helpers

// Map is Run without isolation, returning only the values.
func Map[T, R any](ctx context.Context, items []T, fn Func[T, R], workers int) ([]R, error) {
	results, err := Run(ctx, items, fn, Options{Workers: workers})
	if err != nil {
		return nil, err
	}
	return Values(results), nil
}

// Values extracts the values from results in order.
func Values[R any](results []Result[R]) []R {
	out := make([]R, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}

// Failed counts results carrying an error.
func Failed[R any](results []Result[R]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// #endregion helpers
