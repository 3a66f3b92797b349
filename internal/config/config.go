// Package config defines the batch configuration and its loading layers.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/timeseries"
	"github.com/okian/spanline/internal/domain/types"
)

const dateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// DataDir holds one directory of raw parquet tables per site. It may be
	// an s3:// or https:// prefix.
	DataDir string `koanf:"data_dir" validate:"required"`

	// OutputDir receives <site>.usage.parquet.
	OutputDir string `koanf:"output_dir" validate:"required"`

	Sites []string `koanf:"sites" validate:"required,min=1,dive,required"`

	// WindowStart and WindowEnd bound the report, YYYY-MM-DD or RFC3339.
	WindowStart string `koanf:"window_start" validate:"required"`
	WindowEnd   string `koanf:"window_end" validate:"required"`

	// Resample is a bucket size such as "1d" or "12h". Empty keeps the
	// change points.
	Resample string `koanf:"resample"`

	Mode string `koanf:"mode" validate:"oneof=intervals segments"`

	// SourcePriority orders fact sources in segments mode. Empty uses the
	// fact registry order.
	SourcePriority []string `koanf:"source_priority" validate:"dive,required"`

	// WorkerCount sets the number of concurrent sites.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// QueueSize bounds the site job queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// MetricsFile, when set, receives a prometheus textfile after the run.
	MetricsFile string `koanf:"metrics_file"`

	// WriteCompat adds <site>.compat.parquet with daily node-hours.
	WriteCompat bool `koanf:"write_compat"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		DataDir:     "data",
		OutputDir:   "output",
		Sites:       []string{"chi_uc", "chi_tacc", "kvm_tacc"},
		WindowStart: "2024-01-01",
		WindowEnd:   "2025-01-01",
		Resample:    "1d",
		Mode:        types.ModeIntervals,
		WorkerCount: runtime.NumCPU(),
		QueueSize:   64,
	}
}

// Window parses the report window.
func (c *Config) Window() (model.Window, error) {
	start, err := parseTime(c.WindowStart)
	if err != nil {
		return model.Window{}, fmt.Errorf("%w: window_start: %w", ErrInvalidConfig, err)
	}
	end, err := parseTime(c.WindowEnd)
	if err != nil {
		return model.Window{}, fmt.Errorf("%w: window_end: %w", ErrInvalidConfig, err)
	}
	if !end.After(start) {
		return model.Window{}, fmt.Errorf("%w: window_end %s is not after window_start %s",
			ErrInvalidConfig, c.WindowEnd, c.WindowStart)
	}
	return model.Window{Start: start, End: end}, nil
}

// Bucket parses Resample. Zero means no resampling.
func (c *Config) Bucket() (time.Duration, error) {
	if c.Resample == "" {
		return 0, nil
	}
	d, err := timeseries.ParseBucket(c.Resample)
	if err != nil {
		return 0, fmt.Errorf("%w: resample: %w", ErrInvalidConfig, err)
	}
	return d, nil
}

// Validate checks struct tags, the window and the bucket.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := c.Bucket(); err != nil {
		return err
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
