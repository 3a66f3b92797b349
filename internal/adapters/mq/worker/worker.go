// Package worker runs site jobs pulled off a queue through a Handler.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/spanline/internal/adapters/mq/queue"
	"github.com/okian/spanline/pkg/logger"
	"github.com/okian/spanline/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler processes one job.
type Handler interface {
	Process(ctx context.Context, job queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, job queue.Job) error {
	return f(ctx, job)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs using the provided handler.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing jobs.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	// busy is shared across a pool so the active gauge reflects all workers.
	busy *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		handler:  handler,
		name:     "worker",
		busy:     &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop. It returns once the queue is closed and
// drained, ctx is canceled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "job failed",
					logger.String("run_id", job.RunID),
					logger.String("site", job.Site),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) error {
	metrics.UpdateWorkerActiveCount(int(w.busy.Add(1)))
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(time.Since(start))
		metrics.UpdateWorkerActiveCount(int(w.busy.Add(-1)))
	}()

	w.logger.Debug(ctx, "job started",
		logger.String("site", job.Site),
		logger.Duration("waited", start.Sub(job.Enqueued)),
	)

	if err := w.handler.Process(ctx, job); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("site %s: %w", job.Site, err)
	}
	return nil
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses runtime.NumCPU().
func NewPool(workerCount int, queue Queue, handler Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
	}

	cfg := &InMemoryWorker{}
	for _, opt := range opts {
		opt(cfg)
	}
	pool.logger = cfg.logger
	if pool.logger == nil {
		pool.logger = logger.Get().Named("worker-pool")
	}

	busy := &atomic.Int64{}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, handler, workerOpts...)
		pool.workers[i].busy = busy
	}

	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Wait blocks until every worker has returned, which happens once the
// queue is closed and drained, or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	for _, worker := range p.workers {
		select {
		case <-worker.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop signals every worker and waits briefly for each.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		worker.shutdownOnce.Do(func() { close(worker.shutdown) })
	}
	for _, worker := range p.workers {
		select {
		case <-worker.Done():
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, stops the workers and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, worker := range p.workers {
		worker.shutdownOnce.Do(func() { close(worker.shutdown) })
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, worker := range p.workers {
		select {
		case <-worker.Done():
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("pool shutdown timed out: %w", shutdownCtx.Err())
	}
	return nil
}
