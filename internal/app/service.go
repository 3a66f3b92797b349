// Package service runs the usage pipeline over a set of sites.
package service

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/okian/spanline/internal/adapters/mq/queue"
	"github.com/okian/spanline/internal/adapters/mq/worker"
	"github.com/okian/spanline/pkg/logger"
	"github.com/okian/spanline/pkg/metrics"
)

const enqueueRetryDelay = 10 * time.Millisecond

// Site outcomes recorded in metrics.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Report is the outcome of one multi-site run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []*Result
	Failed   []string
}

// Service fans sites out over a worker pool.
type Service struct {
	pipeline *Pipeline

	workerCount int
	queueSize   int
	metricsFile string

	logger logger.Logger
}

// New constructs a Service around pipeline.
func New(pipeline *Pipeline, opts ...Option) *Service {
	s := &Service{
		pipeline:    pipeline,
		workerCount: runtime.NumCPU(),
		queueSize:   64,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	return s
}

// Run processes every site once. A failed site does not stop the others; the
// returned error aggregates every failure and the report lists the sites that
// succeeded.
func (s *Service) Run(ctx context.Context, sites []string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	log := s.logger.With(logger.String("run_id", report.RunID))
	log.Info(ctx, "run started",
		logger.Any("sites", sites),
		logger.Int("workers", s.workerCount),
	)

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	handler := worker.HandlerFunc(func(ctx context.Context, job queue.Job) error {
		res, err := s.pipeline.Run(ctx, job.Site)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			metrics.RecordSite(StatusFailed)
			report.Failed = append(report.Failed, job.Site)
			result = multierror.Append(result, fmt.Errorf("site %s: %w", job.Site, err))
			return err
		}
		metrics.RecordSite(StatusOK)
		report.Results = append(report.Results, res)
		return nil
	})

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	pool := worker.NewPool(min(s.workerCount, max(len(sites), 1)), q, handler,
		worker.WithLogger(log.Named("worker")))
	pool.Start(ctx)

	for _, site := range sites {
		if err := s.enqueue(ctx, q, queue.Job{RunID: report.RunID, Site: site}); err != nil {
			_ = pool.Shutdown(ctx)
			return nil, err
		}
	}
	if err := q.Close(); err != nil {
		return nil, err
	}
	if err := pool.Wait(ctx); err != nil {
		pool.Stop()
		return nil, fmt.Errorf("run %s: %w", report.RunID, err)
	}

	report.Finished = time.Now()
	slices.SortFunc(report.Results, func(a, b *Result) int { return cmp.Compare(a.Site, b.Site) })
	slices.Sort(report.Failed)

	metrics.MarkRunFinished(report.Finished)
	if s.metricsFile != "" {
		if err := metrics.WriteTextfile(s.metricsFile); err != nil {
			result = multierror.Append(result, err)
		}
	}

	log.Info(ctx, "run finished",
		logger.Int("succeeded", len(report.Results)),
		logger.Int("failed", len(report.Failed)),
		logger.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, result.ErrorOrNil()
}

// enqueue retries while the queue is full.
func (s *Service) enqueue(ctx context.Context, q *queue.InMemoryQueue, job queue.Job) error {
	for !q.Enqueue(ctx, job) {
		if q.IsClosed() {
			return fmt.Errorf("site %s: %w", job.Site, queue.ErrClosed)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("site %s: %w: %w", job.Site, queue.ErrFull, ctx.Err())
		case <-time.After(enqueueRetryDelay):
		}
	}
	return nil
}
