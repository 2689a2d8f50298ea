package worker

import (
	"context"
	"sync"
)

// Job is one unit of work producing a value
type Job[T any] func(ctx context.Context) (T, error)

// Result is a job's outcome at its submission index
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool runs jobs on a bounded number of goroutines
type Pool[T any] struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T]{workers: workers}
}

// Run executes all jobs and returns their results in submission order.
// Jobs not started before ctx is cancelled report ctx.Err().
func (p *Pool[T]) Run(ctx context.Context, jobs []Job[T]) []Result[T] {
	results := make([]Result[T], len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for range min(p.workers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = p.execute(ctx, i, jobs[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(jobs); next++ {
		select {
		case <-ctx.Done():
			break feed
		case queue <- next:
		}
	}
	close(queue)
	wg.Wait()

	for i := next; i < len(jobs); i++ {
		results[i] = Result[T]{Index: i, Err: ctx.Err()}
	}
	return results
}

func (p *Pool[T]) execute(ctx context.Context, i int, job Job[T]) Result[T] {
	if err := ctx.Err(); err != nil {
		return Result[T]{Index: i, Err: err}
	}
	v, err := job(ctx)
	return Result[T]{Index: i, Value: v, Err: err}
}
