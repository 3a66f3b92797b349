package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/spanline/internal/adapters/sink"
	"github.com/okian/spanline/internal/adapters/source"
	app "github.com/okian/spanline/internal/app"
	"github.com/okian/spanline/internal/config"
	"github.com/okian/spanline/pkg/logger"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		os.Stderr.WriteString("spanline: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// run loads configuration, processes every configured site and writes the
// audit report to report.
func run(ctx context.Context, report io.Writer) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	window, err := cfg.Window()
	if err != nil {
		return err
	}
	bucket, err := cfg.Bucket()
	if err != nil {
		return err
	}

	loader, err := source.NewLoader(ctx, cfg.DataDir, source.WithLogger(log.Named("source")))
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(); err != nil {
			log.Error(ctx, "closing loader", logger.Error(err))
		}
	}()

	writer, err := sink.NewWriter(cfg.OutputDir, sink.WithLogger(log.Named("sink")))
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error(ctx, "closing writer", logger.Error(err))
		}
	}()

	pipeline := app.NewPipeline(loader, writer, window,
		app.WithMode(cfg.Mode),
		app.WithBucket(bucket),
		app.WithPriority(cfg.SourcePriority),
		app.WithCompat(cfg.WriteCompat),
		app.WithReport(report),
		app.WithPipelineLogger(log.Named("pipeline")),
	)
	svc := app.New(pipeline,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMetricsFile(cfg.MetricsFile),
	)

	result, err := svc.Run(ctx, cfg.Sites)
	if result != nil {
		for _, r := range result.Results {
			log.Info(ctx, "site output",
				logger.String("site", r.Site),
				logger.String("usage", r.UsagePath),
				logger.String("compat", r.CompatPath),
				logger.Int("points", len(r.Points)),
			)
		}
	}
	return err
}
