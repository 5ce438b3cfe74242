package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleyai/quorum/internal/adapters/llm"
	service "github.com/parleyai/quorum/internal/app"
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

func startService(ctx context.Context, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithAdapters(
			llm.NewStatic("alpha", llm.WithResponse("yes"), llm.WithConfidence(0.85)),
			llm.NewStatic("beta", llm.WithResponse("yes"), llm.WithConfidence(0.9)),
		),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	return svc
}

// awaitTerminal polls GetResult the way an HTTP client would.
func awaitTerminal(ctx context.Context, svc *service.Service, id string) *model.ConsensusJob {
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			return nil
		case <-time.After(5 * time.Millisecond):
			job, err := svc.GetResult(ctx, id)
			if err == nil && job.Status.Terminal() {
				return job
			}
		}
	}
}

func TestService_SubmitAndPoll(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(ctx)
		defer svc.Stop()

		Convey("When submitting a request with defaults", func() {
			job, err := svc.Submit(ctx, model.SubmitRequest{Prompt: "should we book?"})

			Convey("Then a pending job is returned immediately", func() {
				So(err, ShouldBeNil)
				So(job.ID, ShouldNotBeEmpty)
				So(job.Strategy, ShouldEqual, model.StrategyMajority)
				So(job.TaskType, ShouldEqual, model.TaskGeneral)
				So(job.Priority, ShouldEqual, model.PriorityNormal)
			})

			Convey("And polling eventually observes a completed job", func() {
				So(err, ShouldBeNil)
				final := awaitTerminal(ctx, svc, job.ID)
				So(final, ShouldNotBeNil)
				So(final.Status, ShouldEqual, model.StatusCompleted)
				So(final.Consensus, ShouldNotBeNil)
				So(final.Consensus.Confidence, ShouldEqual, 0.9)
				So(final.Consensus.ContributingModels, ShouldResemble, []string{"alpha", "beta"})
			})
		})

		Convey("When restricting the job to one model", func() {
			job, err := svc.Submit(ctx, model.SubmitRequest{Prompt: "p", Models: []string{"alpha"}})
			So(err, ShouldBeNil)

			final := awaitTerminal(ctx, svc, job.ID)
			So(final, ShouldNotBeNil)
			So(final.Results, ShouldHaveLength, 1)
			So(final.Results[0].Model, ShouldEqual, "alpha")
		})
	})
}

func TestService_Validation(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(ctx)
		defer svc.Stop()

		Convey("Then malformed submissions are rejected synchronously", func() {
			_, err := svc.Submit(ctx, model.SubmitRequest{Prompt: "   "})
			So(errors.Is(err, service.ErrInvalidPrompt), ShouldBeTrue)

			_, err = svc.Submit(ctx, model.SubmitRequest{Prompt: "p", Strategy: "plurality"})
			So(errors.Is(err, service.ErrUnknownStrategy), ShouldBeTrue)

			_, err = svc.Submit(ctx, model.SubmitRequest{Prompt: "p", TaskType: "poetry"})
			So(errors.Is(err, service.ErrUnknownTaskType), ShouldBeTrue)

			_, err = svc.Submit(ctx, model.SubmitRequest{Prompt: "p", Priority: "whenever"})
			So(errors.Is(err, service.ErrUnknownPriority), ShouldBeTrue)

			_, err = svc.Submit(ctx, model.SubmitRequest{Prompt: "p", ConfidenceThreshold: 1.5})
			So(errors.Is(err, service.ErrInvalidThreshold), ShouldBeTrue)
		})

		Convey("And unknown job ids read as not found", func() {
			_, err := svc.GetResult(ctx, "no-such-job")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
		})
	})
}

func TestService_IdempotentSubmit(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(ctx)
		defer svc.Stop()

		Convey("When submitting twice with the same idempotency key", func() {
			first, err1 := svc.Submit(ctx, model.SubmitRequest{Prompt: "p", IdempotencyKey: "key-1"})
			second, err2 := svc.Submit(ctx, model.SubmitRequest{Prompt: "p", IdempotencyKey: "key-1"})

			Convey("Then both answers carry the same job id", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second.ID, ShouldEqual, first.ID)
			})
		})

		Convey("When submitting with different keys", func() {
			first, err1 := svc.Submit(ctx, model.SubmitRequest{Prompt: "p", IdempotencyKey: "key-a"})
			second, err2 := svc.Submit(ctx, model.SubmitRequest{Prompt: "p", IdempotencyKey: "key-b"})

			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(second.ID, ShouldNotEqual, first.ID)
		})
	})
}

func TestService_Cancel(t *testing.T) {
	Convey("Given a service over a slow adapter", t, func() {
		ctx := context.Background()
		svc := startService(ctx, service.WithAdapters(
			llm.NewStatic("slow", llm.WithLatency(2*time.Second)),
		))
		defer svc.Stop()

		Convey("When cancelling a submitted job", func() {
			job, err := svc.Submit(ctx, model.SubmitRequest{Prompt: "p"})
			So(err, ShouldBeNil)

			So(svc.Cancel(ctx, job.ID), ShouldBeNil)

			Convey("Then the job is failed with the cancelled cause", func() {
				final, err := svc.GetResult(ctx, job.ID)
				So(err, ShouldBeNil)
				So(final.Status, ShouldEqual, model.StatusFailed)
				So(final.Error, ShouldEqual, model.CauseCancelled)
			})

			Convey("And cancelling again reports the terminal state", func() {
				err := svc.Cancel(ctx, job.ID)
				So(errors.Is(err, service.ErrJobTerminal), ShouldBeTrue)
			})
		})

		Convey("When cancelling an unknown job", func() {
			err := svc.Cancel(ctx, "no-such-job")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
		})
	})
}

func TestService_SoftFailureEndToEnd(t *testing.T) {
	Convey("Given adapters below the confidence threshold", t, func() {
		ctx := context.Background()
		svc := startService(ctx, service.WithAdapters(
			llm.NewStatic("meek", llm.WithConfidence(0.1)),
		))
		defer svc.Stop()

		Convey("When a job runs end to end", func() {
			job, err := svc.Submit(ctx, model.SubmitRequest{Prompt: "p"})
			So(err, ShouldBeNil)

			final := awaitTerminal(ctx, svc, job.ID)

			Convey("Then it completes with a warning and no consensus", func() {
				So(final, ShouldNotBeNil)
				So(final.Status, ShouldEqual, model.StatusCompleted)
				So(final.Consensus, ShouldBeNil)
				So(final.Warning, ShouldNotBeEmpty)
			})
		})
	})
}

func TestService_Stats(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(ctx)
		defer svc.Stop()

		Convey("Then stats expose the configured shape", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["models"], ShouldResemble, []string{"alpha", "beta"})
			So(stats, ShouldContainKey, "jobs_tracked")
			So(stats, ShouldContainKey, "queue_length")
		})

		Convey("And Models lists the registry contents", func() {
			So(svc.Models(), ShouldResemble, []string{"alpha", "beta"})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then operations report the lifecycle error", func() {
			_, err := svc.Submit(context.Background(), model.SubmitRequest{Prompt: "p"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.GetResult(context.Background(), "id")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			So(errors.Is(svc.Cancel(context.Background(), "id"), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}
