package service

import (
	"io"
	"time"

	"github.com/okian/spanline/internal/adapters/registry"
	"github.com/okian/spanline/internal/domain/hierarchy"
	"github.com/okian/spanline/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sites processed concurrently.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the site job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMetricsFile writes a prometheus textfile at the end of each run.
func WithMetricsFile(path string) Option {
	return func(s *Service) {
		s.metricsFile = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// PipelineOption applies a configuration option to the Pipeline.
type PipelineOption func(*Pipeline)

// WithMode selects the intervals or segments front-end.
func WithMode(mode string) PipelineOption {
	return func(p *Pipeline) {
		if mode != "" {
			p.mode = mode
		}
	}
}

// WithBucket resamples output to fixed buckets. Zero keeps change points.
func WithBucket(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.bucket = d
	}
}

// WithPriority orders fact sources in segments mode.
func WithPriority(sources []string) PipelineOption {
	return func(p *Pipeline) {
		p.priority = sources
	}
}

// WithCompat also writes daily node-hours in the legacy layout.
func WithCompat(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.compat = enabled
	}
}

// WithReport renders audit tables to w.
func WithReport(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.report = w
	}
}

// WithIntervalAdapters replaces the interval adapter registry.
func WithIntervalAdapters(r *registry.Registry[registry.IntervalAdapter]) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.intervals = r
		}
	}
}

// WithFactAdapters replaces the fact adapter registry.
func WithFactAdapters(r *registry.Registry[registry.FactAdapter]) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.facts = r
		}
	}
}

// WithValidator replaces the hierarchy validator.
func WithValidator(v *hierarchy.Validator) PipelineOption {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(log logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}
