package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/spanline/internal/adapters/registry"
	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/audit"
	"github.com/okian/spanline/internal/domain/derived"
	"github.com/okian/spanline/internal/domain/hierarchy"
	"github.com/okian/spanline/internal/domain/legacy"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/segment"
	"github.com/okian/spanline/internal/domain/sweepline"
	"github.com/okian/spanline/internal/domain/timeseries"
	"github.com/okian/spanline/internal/domain/types"
	"github.com/okian/spanline/pkg/logger"
	"github.com/okian/spanline/pkg/metrics"
)

const compatBucket = 24 * time.Hour

// Loader reads the raw tables of one site.
type Loader interface {
	Load(ctx context.Context, site string) (*source.Tables, error)
}

// Writer persists the output of one site.
type Writer interface {
	WriteUsage(ctx context.Context, site string, points []model.UsagePoint) (string, error)
	WriteCompat(ctx context.Context, site string, rows []derived.CompatRow) (string, error)
}

// Result describes one finished site.
type Result struct {
	Site       string
	Intervals  int
	Facts      int
	Points     []model.UsagePoint
	Skipped    []registry.Skip
	Rows       audit.RowReport
	UsagePath  string
	CompatPath string
}

// Pipeline turns the raw tables of a site into usage points.
type Pipeline struct {
	loader Loader
	writer Writer
	window model.Window

	mode     string
	bucket   time.Duration
	priority []string
	compat   bool
	report   io.Writer
	reportMu sync.Mutex

	intervals *registry.Registry[registry.IntervalAdapter]
	facts     *registry.Registry[registry.FactAdapter]
	validator *hierarchy.Validator

	logger logger.Logger
}

// NewPipeline creates a pipeline over window. A nil writer skips persistence.
func NewPipeline(loader Loader, writer Writer, window model.Window, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:    loader,
		writer:    writer,
		window:    window,
		mode:      types.ModeIntervals,
		intervals: registry.DefaultIntervals(),
		facts:     registry.DefaultFacts(),
		validator: hierarchy.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named("pipeline")
	}
	if len(p.priority) == 0 {
		p.priority = p.facts.Names()
	}
	return p
}

// Run processes one site.
func (p *Pipeline) Run(ctx context.Context, site string) (*Result, error) {
	log := p.logger.With(logger.String("site", site))
	res := &Result{Site: site}

	var tables *source.Tables
	if err := p.stage(ctx, "load", func() error {
		var err error
		tables, err = p.loader.Load(ctx, site)
		return err
	}); err != nil {
		return nil, err
	}

	var spans []model.Span[model.SeriesKey]
	var err error
	switch p.mode {
	case types.ModeSegments:
		spans, err = p.segmentSpans(ctx, log, tables, res)
	default:
		spans, err = p.intervalSpans(ctx, log, tables, res)
	}
	if err != nil {
		return nil, err
	}

	var samples []model.Sample[model.SeriesKey]
	if err := p.stage(ctx, "sweepline", func() error {
		counts := timeseries.ClipToWindow(sweepline.Counts(spans), p.window)
		counts = timeseries.Points(timeseries.FillNull(timeseries.Align(counts), 0))
		samples = timeseries.Align(derived.Compute(counts))
		return nil
	}); err != nil {
		return nil, err
	}

	var out []model.Sample[model.SeriesKey]
	if err := p.stage(ctx, "resample", func() error {
		if p.bucket <= 0 {
			out = enterWindow(samples, p.window)
			return nil
		}
		var err error
		out, err = timeseries.Resample(samples, p.window, p.bucket)
		return err
	}); err != nil {
		return nil, err
	}

	res.Points = usagePoints(out, site, types.CollectorCurrent)
	metrics.RecordUsagePoints(site, string(types.CollectorCurrent), len(res.Points))

	legacyPoints := inWindow(legacy.ToUsage(tables.LegacyUsage, site), p.window)
	if len(legacyPoints) > 0 {
		metrics.RecordUsagePoints(site, string(types.CollectorLegacy), len(legacyPoints))
		res.Points = append(res.Points, legacyPoints...)
	}

	if p.writer != nil {
		if err := p.stage(ctx, "sink", func() error {
			return p.write(ctx, site, samples, res)
		}); err != nil {
			return nil, err
		}
	}

	log.Info(ctx, "site processed",
		logger.Int("intervals", res.Intervals),
		logger.Int("facts", res.Facts),
		logger.Int("points", len(res.Points)),
		logger.Int("skipped_adapters", len(res.Skipped)),
	)
	return res, nil
}

func (p *Pipeline) intervalSpans(ctx context.Context, log logger.Logger, tables *source.Tables, res *Result) ([]model.Span[model.SeriesKey], error) {
	var ivs []model.Interval
	if err := p.stage(ctx, "adapters", func() error {
		var err error
		ivs, res.Skipped, err = registry.ToIntervals(p.intervals, tables)
		return err
	}); err != nil {
		return nil, err
	}
	p.logSkips(ctx, log, res.Skipped)

	ivs = registry.FilterWindow(ivs, p.window)
	res.Intervals = len(ivs)
	for src, n := range countBy(ivs, func(iv model.Interval) string { return iv.Source }) {
		metrics.RecordIntervals(res.Site, src, n)
	}

	var rows []model.ClampedInterval
	if err := p.stage(ctx, "hierarchy", func() error {
		var err error
		rows, err = p.validator.Validate(ivs)
		return err
	}); err != nil {
		return nil, err
	}

	type outcome struct {
		metric types.Metric
		action types.CoerceAction
	}
	for o, n := range countBy(rows, func(r model.ClampedInterval) outcome {
		return outcome{metric: r.Metric, action: r.CoerceAction}
	}) {
		metrics.RecordClampOutcome(res.Site, string(o.metric), string(o.action), n)
	}

	if err := p.stage(ctx, "audit", func() error {
		return p.audit(ctx, log, ivs, rows, res)
	}); err != nil {
		return nil, err
	}

	spans := make([]model.Span[model.SeriesKey], 0, len(rows))
	for _, r := range rows {
		if !r.Valid {
			continue
		}
		spans = append(spans, model.Span[model.SeriesKey]{
			Key:   model.SeriesKey{Metric: r.Metric, Resource: r.Resource},
			Start: r.Start,
			End:   r.End,
			Value: r.Value,
		})
	}
	return spans, nil
}

func (p *Pipeline) segmentSpans(ctx context.Context, log logger.Logger, tables *source.Tables, res *Result) ([]model.Span[model.SeriesKey], error) {
	var facts []model.Fact
	if err := p.stage(ctx, "adapters", func() error {
		facts, res.Skipped = registry.ToFacts(p.facts, tables)
		return nil
	}); err != nil {
		return nil, err
	}
	p.logSkips(ctx, log, res.Skipped)

	res.Facts = len(facts)
	for src, n := range countBy(facts, func(f model.Fact) string { return f.Source }) {
		metrics.RecordIntervals(res.Site, src, n)
	}

	var spans []model.Span[model.SeriesKey]
	if err := p.stage(ctx, "segments", func() error {
		b := segment.NewBuilder(p.priority)
		log.Debug(ctx, "building segments",
			logger.Any("priority", b.Priority()),
			logger.Int("facts", len(facts)),
		)
		segs := b.Build(facts)
		spans = segment.ToSpans(segs, types.ResourceNodes, 1)
		return nil
	}); err != nil {
		return nil, err
	}
	return spans, nil
}

func (p *Pipeline) audit(ctx context.Context, log logger.Logger, ivs []model.Interval, rows []model.ClampedInterval, res *Result) error {
	res.Rows = audit.CheckRowInvariant(audit.CountRows(ivs, rows))
	for _, v := range res.Rows.Violations {
		metrics.RecordInvariantViolation(res.Site, v.Source)
		log.Warn(ctx, "row invariant violated",
			logger.String("source", v.Source),
			logger.Int("raw", v.Raw),
			logger.Int("valid", v.Valid),
			logger.Int("rejected", v.Rejected),
			logger.Int("mismatch", v.Mismatch()),
		)
	}

	summary := audit.Summarize(rows, p.window)
	if summary.Rejected > 0 {
		log.Info(ctx, "rows rejected",
			logger.Int("rejected", summary.Rejected),
			logger.Int("total", summary.Total),
		)
	}

	if p.report == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := audit.RenderRows(&buf, res.Site, res.Rows); err != nil {
		return fmt.Errorf("render rows: %w", err)
	}
	if err := audit.RenderHours(&buf, res.Site, audit.ReportHours(rows, p.window)); err != nil {
		return fmt.Errorf("render hours: %w", err)
	}
	if err := audit.RenderSummary(&buf, res.Site, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	// One write per site keeps concurrent reports from interleaving.
	p.reportMu.Lock()
	defer p.reportMu.Unlock()
	if _, err := p.report.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (p *Pipeline) write(ctx context.Context, site string, samples []model.Sample[model.SeriesKey], res *Result) error {
	path, err := p.writer.WriteUsage(ctx, site, res.Points)
	if err != nil {
		return err
	}
	res.UsagePath = path

	if !p.compat {
		return nil
	}
	daily, err := timeseries.Resample(samples, p.window, compatBucket)
	if err != nil {
		return err
	}
	rows := derived.CompatHours(usagePoints(daily, site, types.CollectorCurrent))
	res.CompatPath, err = p.writer.WriteCompat(ctx, site, rows)
	return err
}

func (p *Pipeline) logSkips(ctx context.Context, log logger.Logger, skips []registry.Skip) {
	for _, s := range skips {
		missing := make([]string, len(s.Missing))
		for i, t := range s.Missing {
			missing[i] = string(t)
		}
		log.Warn(ctx, "adapter skipped",
			logger.String("adapter", s.Adapter),
			logger.Any("missing", missing),
		)
	}
}

// stage times fn and stops early on cancellation.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// enterWindow drops samples before the window start, except the last of them,
// which is moved to the start so the state entering the window is kept.
func enterWindow(samples []model.Sample[model.SeriesKey], w model.Window) []model.Sample[model.SeriesKey] {
	var carry time.Time
	atStart := false
	for _, s := range samples {
		switch {
		case s.Timestamp.Before(w.Start) && s.Timestamp.After(carry):
			carry = s.Timestamp
		case s.Timestamp.Equal(w.Start):
			atStart = true
		}
	}

	out := make([]model.Sample[model.SeriesKey], 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(w.Start) {
			if atStart || !s.Timestamp.Equal(carry) {
				continue
			}
			s.Timestamp = w.Start
		}
		out = append(out, s)
	}
	return out
}

func usagePoints(samples []model.Sample[model.SeriesKey], site string, collector types.CollectorType) []model.UsagePoint {
	out := make([]model.UsagePoint, 0, len(samples))
	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		out = append(out, model.UsagePoint{
			Timestamp:     s.Timestamp,
			Metric:        s.Key.Metric,
			Resource:      s.Key.Resource,
			Value:         *s.Value,
			Site:          site,
			CollectorType: collector,
		})
	}
	return out
}

func inWindow(points []model.UsagePoint, w model.Window) []model.UsagePoint {
	out := points[:0]
	for _, pt := range points {
		if w.Contains(pt.Timestamp) {
			out = append(out, pt)
		}
	}
	return out
}

func countBy[T any, K comparable](items []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, it := range items {
		out[key(it)]++
	}
	return out
}
