package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleyai/quorum/internal/adapters/llm"
	"github.com/parleyai/quorum/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry_Select(t *testing.T) {
	Convey("Given a registry with three adapters", t, func() {
		registry := llm.NewRegistry(
			llm.NewStatic("alpha"),
			llm.NewStatic("beta"),
			llm.NewStatic("gamma"),
		)

		Convey("When selecting with an empty allowlist", func() {
			selected := registry.Select(nil)

			Convey("Then every adapter is returned in registration order", func() {
				So(selected, ShouldHaveLength, 3)
				So(selected[0].Name(), ShouldEqual, "alpha")
				So(selected[2].Name(), ShouldEqual, "gamma")
			})
		})

		Convey("When selecting a subset", func() {
			selected := registry.Select([]string{"gamma", "alpha"})

			Convey("Then registration order wins over request order", func() {
				So(selected, ShouldHaveLength, 2)
				So(selected[0].Name(), ShouldEqual, "alpha")
				So(selected[1].Name(), ShouldEqual, "gamma")
			})
		})

		Convey("When selecting unknown names", func() {
			selected := registry.Select([]string{"delta"})

			So(selected, ShouldBeEmpty)
		})

		Convey("Then Names lists the configured models", func() {
			So(registry.Names(), ShouldResemble, []string{"alpha", "beta", "gamma"})
		})
	})

	Convey("Given duplicate registrations", t, func() {
		registry := llm.NewRegistry(
			llm.NewStatic("alpha", llm.WithResponse("first")),
			llm.NewStatic("alpha", llm.WithResponse("second")),
		)

		Convey("Then the first registration wins", func() {
			selected := registry.Select([]string{"alpha"})
			So(selected, ShouldHaveLength, 1)

			res, err := selected[0].Invoke(context.Background(), llm.Request{Prompt: "p", Task: model.TaskGeneral})
			So(err, ShouldBeNil)
			So(res.Response, ShouldEqual, "first")
		})
	})
}

func TestStaticAdapter(t *testing.T) {
	Convey("Given a static adapter with fixed values", t, func() {
		adapter := llm.NewStatic("double",
			llm.WithResponse("9"),
			llm.WithScore(9),
			llm.WithConfidence(0.8),
			llm.WithReasoning("fixed"),
		)

		Convey("When invoking it", func() {
			res, err := adapter.Invoke(context.Background(), llm.Request{Prompt: "rate this", Task: model.TaskQualification})

			Convey("Then the configured values come back", func() {
				So(err, ShouldBeNil)
				So(res.Model, ShouldEqual, "double")
				So(res.Response, ShouldEqual, "9")
				So(res.Score, ShouldEqual, 9)
				So(res.Confidence, ShouldEqual, 0.8)
				So(res.Reasoning, ShouldEqual, "fixed")
			})
		})
	})

	Convey("Given a static adapter slower than its deadline", t, func() {
		adapter := llm.NewStatic("slow", llm.WithLatency(time.Second))

		Convey("When invoking with a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := adapter.Invoke(ctx, llm.Request{Prompt: "p", Task: model.TaskGeneral})

			Convey("Then the timeout sentinel is returned", func() {
				So(errors.Is(err, llm.ErrTimeout), ShouldBeTrue)
				So(llm.Outcome(err), ShouldEqual, "timeout")
			})
		})
	})
}

func TestOutcome(t *testing.T) {
	Convey("Outcome classifies adapter errors for metrics", t, func() {
		So(llm.Outcome(nil), ShouldEqual, "ok")
		So(llm.Outcome(llm.ErrTimeout), ShouldEqual, "timeout")
		So(llm.Outcome(llm.ErrUnavailable), ShouldEqual, "unavailable")
		So(llm.Outcome(llm.ErrInvalidResponse), ShouldEqual, "invalid_response")
		So(llm.Outcome(errors.New("boom")), ShouldEqual, "error")
	})
}
