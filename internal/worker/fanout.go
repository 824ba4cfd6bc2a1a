package worker

import (
	"context"

	"cloudaudit/internal/logging"
)

// Result holds the outcome of one keyed unit of work
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// Run calls fn once per key on a pool of at most workers goroutines and returns
// one Result per key in key order. A failing key does not affect the others.
// Keys that never started because ctx was cancelled carry ctx.Err().
func Run[T any](ctx context.Context, workers int, keys []string, fn func(ctx context.Context, key string) (T, error)) []Result[T] {
	results := make([]Result[T], len(keys))
	if len(keys) == 0 {
		return results
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	pool := NewPool(ctx, workers)
	pool.Start()
	defer pool.Stop()

	started := make([]bool, len(keys))
	tasks := make([]Task, len(keys))
	for i, key := range keys {
		i, key := i, key
		results[i].Key = key
		tasks[i] = func(taskCtx context.Context) error {
			// Each task owns exactly one slot, so no locking is needed
			started[i] = true
			value, err := fn(taskCtx, key)
			results[i].Value = value
			results[i].Err = err
			return err
		}
	}

	pool.ExecuteTasks(tasks)

	metrics := pool.GetMetrics()
	logging.Debug("Worker pool finished", map[string]interface{}{
		"tasks":        metrics.TotalTasks,
		"failed":       metrics.FailedTasks,
		"peak_workers": metrics.PeakWorkers,
		"avg_ms":       metrics.AverageExecutionMs,
	})

	for i := range results {
		if !started[i] {
			results[i].Err = ctx.Err()
			if results[i].Err == nil {
				results[i].Err = context.Canceled
			}
		}
	}
	return results
}

// Split separates successful values from failed results, preserving order
func Split[T any](results []Result[T]) ([]T, []Result[T]) {
	var values []T
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		values = append(values, r.Value)
	}
	return values, failed
}
