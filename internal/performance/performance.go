// Package performance runs batch analyses on a bounded worker pool and
// throttles analysis starts with a token bucket.
package performance

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// WorkerPool runs submitted tasks on a fixed number of goroutines. A stopped
// pool cannot be restarted.
type WorkerPool struct {
	workers int
	tasks   chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewWorkerPool creates a pool of workers goroutines, runtime.NumCPU() when
// workers is not positive.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan func()),
		done:    make(chan struct{}),
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// SubmitContext hands task to an idle worker, blocking until one is free,
// ctx is done or the pool stops.
func (p *WorkerPool) SubmitContext(ctx context.Context, task func()) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return context.Canceled
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return context.Canceled
	}
}

// Stop signals the workers and waits for running tasks to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// ProcessAll runs fn over items on the pool and returns the results in input
// order. Items not submitted before ctx is done keep the zero result and
// ctx.Err() is returned.
func ProcessAll[T, R any](ctx context.Context, pool *WorkerPool, items []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(items))
	var wg sync.WaitGroup

	var submitErr error
	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		err := pool.SubmitContext(ctx, func() {
			defer wg.Done()
			results[i] = fn(ctx, item)
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}

	wg.Wait()
	return results, submitErr
}

// BatchProcessor buffers items and hands them to processor in groups of
// batchSize. It is safe for concurrent use.
type BatchProcessor[T any] struct {
	batchSize int
	processor func([]T) error

	mu    sync.Mutex
	items []T
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor[T any](batchSize int, processor func([]T) error) *BatchProcessor[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		batchSize: batchSize,
		processor: processor,
		items:     make([]T, 0, batchSize),
	}
}

// Add buffers item and processes the batch once it is full.
func (b *BatchProcessor[T]) Add(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	if len(b.items) >= b.batchSize {
		return b.flush()
	}
	return nil
}

// Flush processes whatever is buffered.
func (b *BatchProcessor[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

func (b *BatchProcessor[T]) flush() error {
	if len(b.items) == 0 {
		return nil
	}
	err := b.processor(b.items)
	b.items = b.items[:0]
	return err
}

// idleDelay is reported by a limiter that never refills.
const idleDelay = time.Second

// RateLimiter is a token bucket refilled at rate tokens per second up to burst.
type RateLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a full bucket. A burst below 1 is raised to 1.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      float64(burst),
		now:        time.Now,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// WithClock replaces the limiter's time source. Used in tests.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	r.lastUpdate = now()
	return r
}

// Allow takes a token if one is available.
func (r *RateLimiter) Allow() bool {
	return r.Reserve() == 0
}

// Reserve takes a token and returns 0, or, when the bucket is empty, returns
// how long until the next token without taking one.
func (r *RateLimiter) Reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(r.lastUpdate).Seconds(); elapsed > 0 {
		r.tokens += elapsed * r.rate
		if r.tokens > r.burst {
			r.tokens = r.burst
		}
	}
	r.lastUpdate = now

	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	if r.rate <= 0 {
		return idleDelay
	}
	delay := time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	return delay
}

// Wait blocks until a token is taken or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay := r.Reserve()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
