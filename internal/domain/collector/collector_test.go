package collector_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ahp/internal/domain/collector"
	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithWriter(io.Discard)
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCollector(clock *fakeClock) *collector.Collector {
	return collector.New(
		collector.WithExpectedEntities("edge", "fog", "cloud"),
		collector.WithUpdateThreshold(30*time.Second),
		collector.WithScoreTimeout(60*time.Second),
		collector.WithClock(clock.Now),
	)
}

func submitAll(ctx context.Context, c *collector.Collector, scores map[string]int64) []*model.Commit {
	var commits []*model.Commit
	for _, entity := range []string{"edge", "fog", "cloud"} {
		commit, err := c.Submit(ctx, entity, scores[entity])
		So(err, ShouldBeNil)
		if commit != nil {
			commits = append(commits, commit)
		}
	}
	return commits
}

func TestCollectorSubmit(t *testing.T) {
	Convey("Given a collector expecting edge, fog and cloud", t, func() {
		ctx := context.Background()
		clock := newFakeClock()
		c := newCollector(clock)

		Convey("When the entity is empty", func() {
			_, err := c.Submit(ctx, "", 10)

			Convey("Then it is rejected without mutating state", func() {
				So(errors.Is(err, collector.ErrMissingEntity), ShouldBeTrue)
				So(c.Read(), ShouldBeEmpty)
			})
		})

		Convey("When only some entities report", func() {
			commit, err := c.Submit(ctx, "edge", 80)

			Convey("Then no commit fires and the score is readable", func() {
				So(err, ShouldBeNil)
				So(commit, ShouldBeNil)
				So(c.Read(), ShouldResemble, map[string]int64{"edge": 80})
			})
		})

		Convey("When all expected entities report", func() {
			commits := submitAll(ctx, c, map[string]int64{"edge": 100, "fog": 40, "cloud": 7})

			Convey("Then exactly one commit carries every weight", func() {
				So(commits, ShouldHaveLength, 1)
				So(commits[0].ID, ShouldNotBeEmpty)
				So(commits[0].TriggeredAt, ShouldEqual, clock.Now())
				So(commits[0].Weights, ShouldResemble, []model.Weight{
					{Entity: "cloud", Weight: 7},
					{Entity: "edge", Weight: 100},
					{Entity: "fog", Weight: 40},
				})
				snap := c.Snapshot()
				So(snap.CommitInFlight, ShouldBeTrue)
				So(snap.LastUpdateTime, ShouldEqual, clock.Now())
			})

			Convey("And an entity resubmits while the commit is in flight", func() {
				clock.Advance(31 * time.Second)
				commit, err := c.Submit(ctx, "edge", 90)

				Convey("Then the score is overwritten without a second commit", func() {
					So(err, ShouldBeNil)
					So(commit, ShouldBeNil)
					So(c.Read()["edge"], ShouldEqual, 90)
				})
			})

			Convey("And the commit completes then an entity resubmits within the threshold", func() {
				c.CommitDone(ctx, commits[0].ID, nil)
				clock.Advance(10 * time.Second)
				commit, _ := c.Submit(ctx, "fog", 41)

				Convey("Then the commit is throttled", func() {
					So(commit, ShouldBeNil)
					So(c.Snapshot().CommitInFlight, ShouldBeFalse)
				})
			})

			Convey("And the commit completes then an entity resubmits after the threshold", func() {
				c.CommitDone(ctx, commits[0].ID, nil)
				clock.Advance(31 * time.Second)
				commit, _ := c.Submit(ctx, "fog", 41)

				Convey("Then a new commit fires with the updated score", func() {
					So(commit, ShouldNotBeNil)
					So(commit.ID, ShouldNotEqual, commits[0].ID)
					So(commit.Weights, ShouldContain, model.Weight{Entity: "fog", Weight: 41})
				})
			})

			Convey("And the commit fails", func() {
				c.CommitDone(ctx, commits[0].ID, errors.New("policy store down"))

				Convey("Then the gate stays usable and throttled from the failed attempt", func() {
					So(c.Snapshot().CommitInFlight, ShouldBeFalse)
					commit, err := c.Submit(ctx, "cloud", 8)
					So(err, ShouldBeNil)
					So(commit, ShouldBeNil)

					clock.Advance(31 * time.Second)
					commit, _ = c.Submit(ctx, "cloud", 9)
					So(commit, ShouldNotBeNil)
				})
			})

			Convey("And a completion for an unknown commit arrives", func() {
				c.CommitDone(ctx, "not-a-commit", nil)

				Convey("Then the in-flight commit is untouched", func() {
					So(c.Snapshot().CommitInFlight, ShouldBeTrue)
				})
			})
		})

		Convey("When an unexpected entity reports", func() {
			_, _ = c.Submit(ctx, "moon", 1)
			commits := submitAll(ctx, c, map[string]int64{"edge": 1, "fog": 2, "cloud": 3})

			Convey("Then the cycle is not complete until it goes stale", func() {
				So(commits, ShouldBeEmpty)
				So(c.Read(), ShouldContainKey, "moon")

				clock.Advance(61 * time.Second)
				commits = submitAll(ctx, c, map[string]int64{"edge": 1, "fog": 2, "cloud": 3})
				So(commits, ShouldHaveLength, 1)
				So(c.Read(), ShouldNotContainKey, "moon")
			})
		})
	})
}

func TestCollectorStaleness(t *testing.T) {
	Convey("Given a collector with a 60s score timeout", t, func() {
		ctx := context.Background()
		clock := newFakeClock()
		c := newCollector(clock)

		Convey("When A reports and B reports after the timeout", func() {
			_, _ = c.Submit(ctx, "edge", 50)
			clock.Advance(61 * time.Second)
			_, _ = c.Submit(ctx, "fog", 60)

			Convey("Then only B remains", func() {
				So(c.Read(), ShouldResemble, map[string]int64{"fog": 60})
				So(c.Snapshot().LastScoreTime, ShouldEqual, clock.Now())
			})
		})

		Convey("When A reports and B reports within the timeout", func() {
			_, _ = c.Submit(ctx, "edge", 50)
			clock.Advance(30 * time.Second)
			_, _ = c.Submit(ctx, "fog", 60)

			Convey("Then both are kept", func() {
				So(c.Read(), ShouldResemble, map[string]int64{"edge": 50, "fog": 60})
			})
		})

		Convey("When the collector sits idle past the timeout", func() {
			_, _ = c.Submit(ctx, "edge", 50)
			clock.Advance(5 * time.Minute)

			Convey("Then stale scores are kept until the next submission", func() {
				So(c.Read(), ShouldResemble, map[string]int64{"edge": 50})
			})
		})

		Convey("When the cycle age is measured from its start", func() {
			_, _ = c.Submit(ctx, "edge", 50)
			clock.Advance(40 * time.Second)
			_, _ = c.Submit(ctx, "edge", 51)
			clock.Advance(40 * time.Second)
			_, _ = c.Submit(ctx, "fog", 60)

			Convey("Then resubmissions do not extend the cycle", func() {
				So(c.Read(), ShouldResemble, map[string]int64{"fog": 60})
			})
		})
	})
}

func TestCollectorConcurrentCompletion(t *testing.T) {
	Convey("Given a collector with the real clock", t, func() {
		ctx := context.Background()
		c := collector.New(collector.WithExpectedEntities("edge", "fog", "cloud"))

		Convey("When every entity submits concurrently many times", func() {
			var (
				wg      sync.WaitGroup
				commits atomic.Int32
			)
			start := make(chan struct{})
			for i := 0; i < 50; i++ {
				for _, entity := range []string{"edge", "fog", "cloud"} {
					wg.Add(1)
					go func(entity string, score int64) {
						defer wg.Done()
						<-start
						commit, err := c.Submit(ctx, entity, score)
						if err == nil && commit != nil {
							commits.Add(1)
						}
					}(entity, int64(i))
				}
			}
			close(start)
			wg.Wait()

			Convey("Then exactly one commit fires", func() {
				So(commits.Load(), ShouldEqual, 1)
				So(c.Read(), ShouldHaveLength, 3)
			})
		})
	})
}
