package config_test

import (
	"runtime"
	"testing"

	"github.com/parleyai/quorum/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New()

		Convey("Then it carries runnable defaults", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.QueueSize, ShouldEqual, 10_000)
			So(cfg.WorkerCount, ShouldEqual, runtime.NumCPU()*2)
			So(cfg.IdempotencySize, ShouldEqual, 10_000)
			So(cfg.DefaultStrategy, ShouldEqual, "majority")
			So(cfg.DefaultTaskType, ShouldEqual, "general")
			So(cfg.ConfidenceThreshold, ShouldEqual, 0.7)
			So(cfg.AdapterTimeoutMS, ShouldEqual, 30_000)
			So(cfg.DispatchTimeoutMS, ShouldEqual, 45_000)
			So(cfg.JobTimeoutS, ShouldEqual, 60)
			So(cfg.RetentionMin, ShouldEqual, 30)
			So(cfg.SweepIntervalS, ShouldEqual, 60)
			So(cfg.Models, ShouldBeEmpty)
		})
	})
}
