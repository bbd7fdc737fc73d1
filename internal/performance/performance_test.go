package performance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkProcessAll measures pool overhead for trivial tasks.
func BenchmarkProcessAll(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	items := make([]int, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ProcessAll(context.Background(), pool, items, func(_ context.Context, v int) int { return v })
	}
}

// BenchmarkRateLimiter benchmarks the rate limiter.
func BenchmarkRateLimiter(b *testing.B) {
	limiter := NewRateLimiter(10000, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

func TestWorkerPool_RunsConcurrently(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		err := pool.SubmitContext(context.Background(), func() {
			defer wg.Done()
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
		if err != nil {
			t.Fatalf("SubmitContext() error = %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	pool.Stop()
	if peak > 4 {
		t.Errorf("peak concurrency = %d, want at most 4 workers", peak)
	}
	if err := pool.SubmitContext(context.Background(), func() {}); !errors.Is(err, context.Canceled) {
		t.Errorf("stopped pool should reject tasks, got %v", err)
	}
}

func TestWorkerPool_SubmitHonoursContext(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	release := make(chan struct{})
	if err := pool.SubmitContext(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("SubmitContext() error = %v", err)
	}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.SubmitContext(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SubmitContext() on a busy pool = %v, want deadline exceeded", err)
	}
}

func TestProcessAll_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Stop()

	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	results, err := ProcessAll(context.Background(), pool, items, func(_ context.Context, v int) int {
		return v * v
	})
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	for i, r := range results {
		if r != i*i {
			t.Fatalf("results[%d] = %d, want %d", i, r, i*i)
		}
	}
}

func TestProcessAll_StoppedPool(t *testing.T) {
	pool := NewWorkerPool(1)
	_, err := ProcessAll(context.Background(), pool, []int{1, 2}, func(_ context.Context, v int) int { return v })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from a pool that was never started, got %v", err)
	}
}

// TestRateLimiterFunctionality tests rate limiter basic functionality.
func TestRateLimiterFunctionality(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	limiter := NewRateLimiter(10, 5).WithClock(func() time.Time { return now })

	allowed := 0
	for i := 0; i < 8; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("Expected exactly the burst of 5 allowed, got %d", allowed)
	}

	now = now.Add(100 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("Expected one token after 100ms at 10/s")
	}
	if limiter.Allow() {
		t.Error("Expected the refilled token to be spent")
	}
}

func TestRateLimiterReserve(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, 1).WithClock(func() time.Time { return now })

	if d := limiter.Reserve(); d != 0 {
		t.Fatalf("first Reserve() = %v, want 0", d)
	}
	if d := limiter.Reserve(); d != 500*time.Millisecond {
		t.Errorf("Reserve() on an empty bucket = %v, want 500ms", d)
	}

	now = now.Add(250 * time.Millisecond)
	if d := limiter.Reserve(); d != 250*time.Millisecond {
		t.Errorf("Reserve() half refilled = %v, want 250ms", d)
	}

	now = now.Add(250 * time.Millisecond)
	if d := limiter.Reserve(); d != 0 {
		t.Errorf("Reserve() after refill = %v, want 0", d)
	}

	idle := NewRateLimiter(0, 1).WithClock(func() time.Time { return now })
	idle.Allow()
	if d := idle.Reserve(); d != idleDelay {
		t.Errorf("Reserve() without refill = %v, want %v", d, idleDelay)
	}
}

func TestRateLimiterWait(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() on an empty bucket = %v, want deadline exceeded", err)
	}
}

// TestBatchProcessorFunctionality tests batch processor basic functionality.
func TestBatchProcessorFunctionality(t *testing.T) {
	var batches [][]int

	processor := NewBatchProcessor(5, func(items []int) error {
		batch := make([]int, len(items))
		copy(batch, items)
		batches = append(batches, batch)
		return nil
	})

	for i := 0; i < 12; i++ {
		if err := processor.Add(i); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := processor.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 5 || len(batches[1]) != 5 || len(batches[2]) != 2 {
		t.Error("Batch sizes incorrect")
	}
}
