package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parleyai/quorum/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	vars := []string{
		"QUORUM_CONFIG",
		"QUORUM_ADDR",
		"QUORUM_LOG_LEVEL",
		"QUORUM_QUEUE_SIZE",
		"QUORUM_WORKER_COUNT",
		"QUORUM_IDEMPOTENCY_SIZE",
		"QUORUM_DEFAULT_STRATEGY",
		"QUORUM_DEFAULT_TASK_TYPE",
		"QUORUM_CONFIDENCE_THRESHOLD",
		"QUORUM_JOB_TIMEOUT_S",
	}
	for _, v := range vars {
		_ = os.Unsetenv(v)
	}
}

func TestConfigLoader(t *testing.T) {
	Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			Convey("Then the defaults come through", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.DefaultStrategy, ShouldEqual, "majority")
				So(cfg.ConfidenceThreshold, ShouldEqual, 0.7)
			})
		})

		Convey("When environment variables are set", func() {
			_ = os.Setenv("QUORUM_ADDR", ":8080")
			_ = os.Setenv("QUORUM_QUEUE_SIZE", "500")
			_ = os.Setenv("QUORUM_DEFAULT_STRATEGY", "unanimous")
			_ = os.Setenv("QUORUM_JOB_TIMEOUT_S", "30")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then env vars override the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.QueueSize, ShouldEqual, 500)
				So(cfg.DefaultStrategy, ShouldEqual, "unanimous")
				So(cfg.JobTimeoutS, ShouldEqual, 30)
			})
		})

		Convey("When a YAML file is provided", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "quorum.yaml")
			yaml := `
addr: ":7070"
default_strategy: weighted
confidence_threshold: 0.5
models:
  - name: gpt
    provider: openai
    model_id: gpt-4
  - name: gem
    provider: gemini
`
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			_ = os.Setenv("QUORUM_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then file values layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.DefaultStrategy, ShouldEqual, "weighted")
				So(cfg.ConfidenceThreshold, ShouldEqual, 0.5)
				So(cfg.Models, ShouldHaveLength, 2)
				So(cfg.Models[0].Provider, ShouldEqual, "openai")
				So(cfg.Models[1].Name, ShouldEqual, "gem")
			})

			Convey("And env still wins over the file", func() {
				_ = os.Setenv("QUORUM_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})

		Convey("When the configuration is invalid", func() {
			Convey("A blank addr is rejected", func() {
				_ = os.Setenv("QUORUM_ADDR", "")
				defer clearConfigEnvVars()

				// Empty env var still unsets the default through koanf,
				// so force it via file instead.
				dir := t.TempDir()
				path := filepath.Join(dir, "quorum.yaml")
				So(os.WriteFile(path, []byte(`addr: ""`), 0o600), ShouldBeNil)
				_ = os.Setenv("QUORUM_CONFIG", path)

				_, err := config.Load(context.Background())
				So(err, ShouldNotBeNil)
			})

			Convey("An out-of-range threshold is rejected", func() {
				_ = os.Setenv("QUORUM_CONFIDENCE_THRESHOLD", "1.5")
				defer clearConfigEnvVars()

				_, err := config.Load(context.Background())
				So(err, ShouldNotBeNil)
			})

			Convey("An unknown default strategy is rejected", func() {
				_ = os.Setenv("QUORUM_DEFAULT_STRATEGY", "plurality")
				defer clearConfigEnvVars()

				_, err := config.Load(context.Background())
				So(err, ShouldNotBeNil)
			})
		})
	})
}
