package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PoolMetrics provides metrics about the worker pool's performance
type PoolMetrics struct {
	TotalTasks         int64
	CompletedTasks     int64
	FailedTasks        int64
	SkippedTasks       int64
	CurrentWorkers     int64
	PeakWorkers        int64
	AverageExecutionMs int64
	TotalExecutionMs   int64
	mu                 sync.RWMutex
}

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Pool manages a fixed number of workers executing tasks concurrently.
// At most maxWorkers tasks are in flight at any moment.
type Pool struct {
	maxWorkers  int
	tasks       chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
	busyWorkers int64
	stopping    int32
	submitMu    sync.RWMutex
}

// NewPool creates a new worker pool whose tasks run under a child of ctx
func NewPool(ctx context.Context, maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &Pool{
		maxWorkers: maxWorkers,
		tasks:      make(chan Task, maxWorkers*2), // Buffer the channel to prevent blocking
		ctx:        poolCtx,
		cancel:     cancel,
		metrics:    &PoolMetrics{},
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop closes the task queue, waits for queued tasks to finish and releases the pool context
func (p *Pool) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopping, 0, 1) {
		return // Already stopping
	}

	p.submitMu.Lock()
	close(p.tasks)
	p.submitMu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// GetMetrics returns the current metrics for the pool
func (p *Pool) GetMetrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	// Create a new metrics struct without copying the mutex
	return PoolMetrics{
		TotalTasks:         p.metrics.TotalTasks,
		CompletedTasks:     p.metrics.CompletedTasks,
		FailedTasks:        p.metrics.FailedTasks,
		SkippedTasks:       p.metrics.SkippedTasks,
		CurrentWorkers:     atomic.LoadInt64(&p.busyWorkers),
		PeakWorkers:        atomic.LoadInt64(&p.metrics.PeakWorkers),
		AverageExecutionMs: p.metrics.TotalExecutionMs / max(p.metrics.CompletedTasks+p.metrics.FailedTasks, 1),
		TotalExecutionMs:   p.metrics.TotalExecutionMs,
	}
}

// Submit queues a task, blocking while the queue is full.
// It reports false when the pool is stopping or its context is done.
func (p *Pool) Submit(task Task) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if atomic.LoadInt32(&p.stopping) == 1 {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	busy := atomic.AddInt64(&p.busyWorkers, 1)
	defer atomic.AddInt64(&p.busyWorkers, -1)

	// Update peak workers count if needed
	for {
		peak := atomic.LoadInt64(&p.metrics.PeakWorkers)
		if busy <= peak {
			break
		}
		if atomic.CompareAndSwapInt64(&p.metrics.PeakWorkers, peak, busy) {
			break
		}
	}

	start := time.Now()
	err := task(p.ctx)
	executionMs := time.Since(start).Milliseconds()

	p.metrics.mu.Lock()
	p.metrics.TotalExecutionMs += executionMs
	if err != nil {
		p.metrics.FailedTasks++
	} else {
		p.metrics.CompletedTasks++
	}
	p.metrics.mu.Unlock()
}

// ExecuteTasks runs tasks on the pool and returns once every submitted task has finished.
// Tasks not yet submitted when the pool context is cancelled are skipped.
func (p *Pool) ExecuteTasks(tasks []Task) {
	var wg sync.WaitGroup

	p.metrics.mu.Lock()
	p.metrics.TotalTasks += int64(len(tasks))
	p.metrics.mu.Unlock()

	for _, t := range tasks {
		task := t
		wg.Add(1)
		wrappedTask := func(ctx context.Context) error {
			defer wg.Done()
			return task(ctx)
		}

		if p.ctx.Err() != nil || !p.Submit(wrappedTask) {
			wg.Done()
			p.metrics.mu.Lock()
			p.metrics.SkippedTasks++
			p.metrics.mu.Unlock()
		}
	}

	wg.Wait()
}
