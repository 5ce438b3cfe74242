package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleyai/quorum/internal/adapters/repository"
	"github.com/parleyai/quorum/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newJob(id string) *model.ConsensusJob {
	return &model.ConsensusJob{
		ID:       id,
		Prompt:   "rate this lead",
		TaskType: model.TaskQualification,
		Strategy: model.StrategyMajority,
		Priority: model.PriorityNormal,
		Status:   model.StatusPending,
	}
}

func TestMemStore_Lifecycle(t *testing.T) {
	Convey("Given a store with one pending job", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()
		So(store.Create(ctx, newJob("job-1")), ShouldBeNil)

		Convey("When creating the same id again", func() {
			err := store.Create(ctx, newJob("job-1"))

			So(errors.Is(err, repository.ErrExists), ShouldBeTrue)
		})

		Convey("When reading an unknown id", func() {
			_, err := store.Get(ctx, "nope")

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When driving the job through its happy path", func() {
			So(store.MarkProcessing(ctx, "job-1"), ShouldBeNil)

			results := []model.ModelResult{{Model: "a", Response: "8", Score: 8, Confidence: 0.9}}
			consensus := &model.ConsensusResult{Response: "8", Score: 8, Confidence: 0.9, Strategy: model.StrategyMajority, ContributingModels: []string{"a"}}
			So(store.Complete(ctx, "job-1", results, consensus, ""), ShouldBeNil)

			Convey("Then the stored job is completed with its consensus", func() {
				job, err := store.Get(ctx, "job-1")
				So(err, ShouldBeNil)
				So(job.Status, ShouldEqual, model.StatusCompleted)
				So(job.Consensus, ShouldNotBeNil)
				So(job.Consensus.Response, ShouldEqual, "8")
				So(job.CompletedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And the store holds its own copy of the consensus", func() {
				consensus.ContributingModels[0] = "tampered"
				job, err := store.Get(ctx, "job-1")
				So(err, ShouldBeNil)
				So(job.Consensus.ContributingModels, ShouldResemble, []string{"a"})
			})

			Convey("And terminal transitions are rejected afterwards", func() {
				So(errors.Is(store.MarkProcessing(ctx, "job-1"), repository.ErrTerminal), ShouldBeTrue)
				So(errors.Is(store.Fail(ctx, "job-1", model.CauseTimeout), repository.ErrTerminal), ShouldBeTrue)
				So(errors.Is(store.Complete(ctx, "job-1", nil, nil, ""), repository.ErrTerminal), ShouldBeTrue)
			})
		})

		Convey("When failing the job", func() {
			So(store.Fail(ctx, "job-1", model.CauseTimeout), ShouldBeNil)

			job, err := store.Get(ctx, "job-1")
			So(err, ShouldBeNil)
			So(job.Status, ShouldEqual, model.StatusFailed)
			So(job.Error, ShouldEqual, model.CauseTimeout)
		})
	})
}

func TestMemStore_IdempotentRead(t *testing.T) {
	Convey("Given a terminal job", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()
		So(store.Create(ctx, newJob("job-1")), ShouldBeNil)
		So(store.MarkProcessing(ctx, "job-1"), ShouldBeNil)
		consensus := &model.ConsensusResult{Response: "yes", Confidence: 0.8, Strategy: model.StrategyWeighted, ContributingModels: []string{"a", "b"}}
		So(store.Complete(ctx, "job-1", nil, consensus, ""), ShouldBeNil)

		Convey("When reading it twice", func() {
			first, err1 := store.Get(ctx, "job-1")
			second, err2 := store.Get(ctx, "job-1")

			Convey("Then both reads are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(*second, ShouldResemble, *first)
			})

			Convey("And mutating one read does not affect the store", func() {
				first.Consensus.Response = "tampered"
				fresh, err := store.Get(ctx, "job-1")
				So(err, ShouldBeNil)
				So(fresh.Consensus.Response, ShouldEqual, "yes")
			})
		})
	})
}

func TestMemStore_InvalidTransitions(t *testing.T) {
	Convey("Given a processing job", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()
		So(store.Create(ctx, newJob("job-1")), ShouldBeNil)
		So(store.MarkProcessing(ctx, "job-1"), ShouldBeNil)

		Convey("When marking it processing again", func() {
			err := store.MarkProcessing(ctx, "job-1")

			So(errors.Is(err, repository.ErrInvalidTransition), ShouldBeTrue)
		})
	})
}

func TestMemStore_CountsAndSweep(t *testing.T) {
	Convey("Given a mix of pending and terminal jobs", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()
		So(store.Create(ctx, newJob("pending-1")), ShouldBeNil)
		So(store.Create(ctx, newJob("done-1")), ShouldBeNil)
		So(store.MarkProcessing(ctx, "done-1"), ShouldBeNil)
		So(store.Complete(ctx, "done-1", nil, nil, "insufficient confidence"), ShouldBeNil)

		Convey("Then counts reflect the split", func() {
			total, err := store.Count(ctx)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 2)

			inFlight, err := store.InFlight(ctx)
			So(err, ShouldBeNil)
			So(inFlight, ShouldEqual, 1)
		})

		Convey("When sweeping with a future cutoff", func() {
			removed, err := store.Sweep(ctx, time.Now().Add(time.Minute))

			Convey("Then only the terminal job is removed", func() {
				So(err, ShouldBeNil)
				So(removed, ShouldEqual, 1)

				_, err := store.Get(ctx, "done-1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				_, err = store.Get(ctx, "pending-1")
				So(err, ShouldBeNil)
			})
		})

		Convey("When sweeping with a past cutoff", func() {
			removed, err := store.Sweep(ctx, time.Now().Add(-time.Minute))

			So(err, ShouldBeNil)
			So(removed, ShouldEqual, 0)
		})
	})
}
