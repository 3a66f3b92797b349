package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/spanline/internal/config"
	"github.com/okian/spanline/internal/domain/types"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Sites, convey.ShouldResemble, []string{"chi_uc", "chi_tacc", "kvm_tacc"})
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.Resample, convey.ShouldEqual, "1d")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SPANLINE_DATA_DIR", "s3://bucket/raw")
			_ = os.Setenv("SPANLINE_WORKER_COUNT", "4")
			_ = os.Setenv("SPANLINE_SITES", "chi_uc, chi_tacc")
			_ = os.Setenv("SPANLINE_MODE", "segments")
			_ = os.Setenv("SPANLINE_SOURCE_PRIORITY", "blazar_computehost,nova_computenode")
			_ = os.Setenv("SPANLINE_WRITE_COMPAT", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "s3://bucket/raw")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Sites, convey.ShouldResemble, []string{"chi_uc", "chi_tacc"})
				convey.So(cfg.Mode, convey.ShouldEqual, types.ModeSegments)
				convey.So(cfg.SourcePriority, convey.ShouldResemble, []string{"blazar_computehost", "nova_computenode"})
				convey.So(cfg.WriteCompat, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
output_dir: /tmp/usage
sites: [chi_uc]
window_start: "2023-06-01"
window_end: "2023-07-01"
resample: 7d
worker_count: 2
`)
			_ = os.Setenv("SPANLINE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/usage")
				convey.So(cfg.Sites, convey.ShouldResemble, []string{"chi_uc"})
				convey.So(cfg.Resample, convey.ShouldEqual, "7d")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.DataDir, convey.ShouldEqual, "data")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
worker_count: 2
log_level: debug
`)
			_ = os.Setenv("SPANLINE_CONFIG", tmpFile)
			_ = os.Setenv("SPANLINE_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("SPANLINE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SPANLINE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SPANLINE_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a zero worker count", func() {
			_ = os.Setenv("SPANLINE_WORKER_COUNT", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "spanline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"SPANLINE_CONFIG",
		"SPANLINE_LOG_LEVEL",
		"SPANLINE_LOG_FORMAT",
		"SPANLINE_DATA_DIR",
		"SPANLINE_OUTPUT_DIR",
		"SPANLINE_SITES",
		"SPANLINE_WINDOW_START",
		"SPANLINE_WINDOW_END",
		"SPANLINE_RESAMPLE",
		"SPANLINE_MODE",
		"SPANLINE_SOURCE_PRIORITY",
		"SPANLINE_WORKER_COUNT",
		"SPANLINE_QUEUE_SIZE",
		"SPANLINE_METRICS_FILE",
		"SPANLINE_WRITE_COMPAT",
	} {
		_ = os.Unsetenv(key)
	}
}
