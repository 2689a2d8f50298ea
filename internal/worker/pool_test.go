package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	if p := NewPool[int](5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool[int](0); p.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool[int](-1); p.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool[int](4)

	jobs := make([]Job[int], 20)
	for i := range jobs {
		n := i
		jobs[i] = func(ctx context.Context) (int, error) {
			// later jobs finish first
			time.Sleep(time.Duration(20-n) * time.Millisecond)
			return n * n, nil
		}
	}

	results := pool.Run(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Value != i*i || r.Err != nil {
			t.Errorf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool[string](2)
	boom := errors.New("job error")

	results := pool.Run(context.Background(), []Job[string]{
		func(ctx context.Context) (string, error) { return "ok", nil },
		func(ctx context.Context) (string, error) { return "", boom },
	})

	if results[0].Err != nil || results[0].Value != "ok" {
		t.Errorf("expected first job to succeed, got %+v", results[0])
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("expected job error, got %v", results[1].Err)
	}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 5
	pool := NewPool[struct{}](workers)

	var current, completed int32
	var maxConcurrent int32
	var mu sync.Mutex

	jobs := make([]Job[struct{}], 30)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) (struct{}, error) {
			curr := atomic.AddInt32(&current, 1)
			mu.Lock()
			if curr > maxConcurrent {
				maxConcurrent = curr
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			atomic.AddInt32(&completed, 1)
			return struct{}{}, nil
		}
	}

	pool.Run(context.Background(), jobs)

	if atomic.LoadInt32(&completed) != int32(len(jobs)) {
		t.Errorf("expected %d completed jobs, got %d", len(jobs), completed)
	}
	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestPool_Cancellation(t *testing.T) {
	pool := NewPool[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executed int32
	jobs := make([]Job[int], 10)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) (int, error) {
			if atomic.AddInt32(&executed, 1) == 2 {
				cancel()
			}
			return 1, nil
		}
	}

	results := pool.Run(ctx, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("expected a result slot per job, got %d", len(results))
	}
	if atomic.LoadInt32(&executed) >= int32(len(jobs)) {
		t.Errorf("expected cancellation to skip jobs, executed %d", executed)
	}
	if !errors.Is(results[len(results)-1].Err, context.Canceled) {
		t.Errorf("expected last job to report cancellation, got %v", results[len(results)-1].Err)
	}
}

func TestPool_Empty(t *testing.T) {
	results := NewPool[int](3).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
