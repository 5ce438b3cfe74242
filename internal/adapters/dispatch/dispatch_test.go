package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleyai/quorum/internal/adapters/dispatch"
	"github.com/parleyai/quorum/internal/adapters/llm"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestDispatcher_FanOutCompleteness(t *testing.T) {
	Convey("Given three healthy adapters", t, func() {
		d := dispatch.New()
		adapters := []llm.Adapter{
			llm.NewStatic("alpha", llm.WithLatency(5*time.Millisecond)),
			llm.NewStatic("beta"),
			llm.NewStatic("gamma", llm.WithLatency(10*time.Millisecond)),
		}

		Convey("When dispatching one prompt", func() {
			results, err := d.Dispatch(context.Background(), "rate this lead", model.TaskGeneral, adapters)

			Convey("Then exactly three results come back with correct identifiers", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 3)

				names := make(map[string]bool, len(results))
				for _, r := range results {
					names[r.Model] = true
				}
				So(names["alpha"], ShouldBeTrue)
				So(names["beta"], ShouldBeTrue)
				So(names["gamma"], ShouldBeTrue)
			})
		})
	})
}

func TestDispatcher_PartialFailure(t *testing.T) {
	Convey("Given three adapters where one always fails", t, func() {
		d := dispatch.New()
		adapters := []llm.Adapter{
			llm.NewStatic("good-1"),
			llm.NewStatic("bad", llm.WithFailure(llm.ErrUnavailable)),
			llm.NewStatic("good-2"),
		}

		Convey("When dispatching", func() {
			results, err := d.Dispatch(context.Background(), "prompt", model.TaskGeneral, adapters)

			Convey("Then the two healthy results are returned without error", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				for _, r := range results {
					So(r.Model, ShouldNotEqual, "bad")
				}
			})
		})
	})

	Convey("Given adapters that all fail", t, func() {
		d := dispatch.New()
		adapters := []llm.Adapter{
			llm.NewStatic("bad-1", llm.WithFailure(llm.ErrUnavailable)),
			llm.NewStatic("bad-2", llm.WithFailure(llm.ErrInvalidResponse)),
		}

		Convey("When dispatching", func() {
			results, err := d.Dispatch(context.Background(), "prompt", model.TaskGeneral, adapters)

			Convey("Then an empty set is returned, still without error", func() {
				So(err, ShouldBeNil)
				So(results, ShouldBeEmpty)
			})
		})
	})
}

func TestDispatcher_ZeroAdapters(t *testing.T) {
	Convey("Given no adapters", t, func() {
		d := dispatch.New()

		Convey("When dispatching", func() {
			_, err := d.Dispatch(context.Background(), "prompt", model.TaskGeneral, nil)

			Convey("Then the no-adapters sentinel is returned", func() {
				So(errors.Is(err, dispatch.ErrNoAdapters), ShouldBeTrue)
			})
		})
	})
}

func TestDispatcher_CallTimeout(t *testing.T) {
	Convey("Given a slow adapter and a tight call timeout", t, func() {
		d := dispatch.New(dispatch.WithCallTimeout(10 * time.Millisecond))
		adapters := []llm.Adapter{
			llm.NewStatic("slow", llm.WithLatency(500*time.Millisecond)),
			llm.NewStatic("fast"),
		}

		Convey("When dispatching", func() {
			start := time.Now()
			results, err := d.Dispatch(context.Background(), "prompt", model.TaskGeneral, adapters)

			Convey("Then the slow adapter is dropped and the round returns promptly", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 1)
				So(results[0].Model, ShouldEqual, "fast")
				So(time.Since(start), ShouldBeLessThan, 400*time.Millisecond)
			})
		})
	})
}
