package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ahp/internal/adapters/http/api"
	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/internal/domain/types"
	"github.com/okian/ahp/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithWriter(io.Discard)
	os.Exit(m.Run())
}

type submission struct {
	entity string
	score  int64
}

type mockDependencies struct {
	mu          sync.Mutex
	candidates  []model.Candidate
	clusters    []model.Candidate
	criteria    model.Criteria
	results     []model.ScoreResult
	scoreErr    error
	submissions []submission
	submitErr   error
	scores      map[string]int64
	health      types.Health
}

func (m *mockDependencies) ScoreDistributions(_ context.Context, c []model.Candidate, crit model.Criteria) ([]model.ScoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates, m.criteria = c, crit
	return m.results, m.scoreErr
}

func (m *mockDependencies) ScoreClusters(_ context.Context, c []model.Candidate, crit model.Criteria) ([]model.ScoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters, m.criteria = c, crit
	return m.results, m.scoreErr
}

func (m *mockDependencies) SubmitScore(_ context.Context, entity string, score int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submissions = append(m.submissions, submission{entity: entity, score: score})
	return nil
}

func (m *mockDependencies) ReadScores(context.Context) map[string]int64 { return m.scores }

func (m *mockDependencies) Health(context.Context) types.Health { return m.health }

type mockStatsProvider struct {
	stats types.Stats
}

func (m *mockStatsProvider) GetStats() types.Stats { return m.stats }

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: types.Stats{Started: true, Strategy: "capped"}}, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestDistributionScore(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{results: []model.ScoreResult{{ID: "A", Score: 100}, {ID: "B", Score: 11}}}
		mux := newMux(deps)

		Convey("When a valid request is posted", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{
				"distributions": [
					{"id": "A", "metrics": {"cost": 100, "latency": 3}},
					{"id": "B", "metrics": {"cost": 200}}
				],
				"criteria": {
					"cost": {"weight": 1.0, "higher_is_better": false},
					"latency": {"weight": 0.5}
				}
			}`)

			Convey("Then scores are returned in input order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
				var resp struct {
					Scores []model.ScoreResult `json:"scores"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Scores, ShouldResemble, deps.results)
			})

			Convey("Then the request is mapped to the domain with defaults", func() {
				So(deps.candidates, ShouldHaveLength, 2)
				So(deps.candidates[1].Metrics, ShouldResemble, map[string]float64{"cost": 200})
				So(deps.criteria["cost"], ShouldResemble, model.Criterion{Weight: 1, HigherIsBetter: false})
				So(deps.criteria["latency"], ShouldResemble, model.Criterion{Weight: 0.5, HigherIsBetter: true})
			})
		})

		Convey("When the body is empty JSON", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{}`)

			Convey("Then missing lists default to empty", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.candidates, ShouldBeEmpty)
				So(deps.criteria, ShouldBeEmpty)
			})
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{"distributions": [`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
		})

		Convey("When ids are duplicated", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{"distributions": [{"id": "A"}, {"id": "A"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "unique")
		})

		Convey("When an id is missing", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{"distributions": [{"metrics": {"cost": 1}}]}`)

			Convey("Then it is scored under an empty id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.candidates, ShouldHaveLength, 1)
				So(deps.candidates[0].ID, ShouldEqual, "")
			})
		})

		Convey("When a weight is negative", func() {
			w := do(mux, http.MethodPost, "/distribution_score", `{"criteria": {"cost": {"weight": -1}}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "must not be negative")
		})

		Convey("When scoring fails", func() {
			deps.scoreErr = context.Canceled
			w := do(mux, http.MethodPost, "/distribution_score", `{}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the method is not POST", func() {
			w := do(mux, http.MethodGet, "/distribution_score", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestClusterScore(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{results: []model.ScoreResult{{ID: "member1", Score: 100}, {ID: "member2", Score: 50}}}
		mux := newMux(deps)

		Convey("When clusters are posted", func() {
			w := do(mux, http.MethodPost, "/cluster_score", `{
				"clusters": [
					{"name": "member1", "metrics": {"cpu": 4}},
					{"name": "member2", "metrics": {"cpu": 2}}
				],
				"criteria": {"cpu": {"weight": 1}}
			}`)

			Convey("Then scores are keyed by cluster name", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual,
					`{"scores":[{"name":"member1","score":100},{"name":"member2","score":50}]}`)
			})

			Convey("Then names become candidate ids", func() {
				So(deps.clusters, ShouldHaveLength, 2)
				So(deps.clusters[0].ID, ShouldEqual, "member1")
				So(deps.clusters[1].Metrics, ShouldResemble, map[string]float64{"cpu": 2})
				So(deps.criteria["cpu"], ShouldResemble, model.Criterion{Weight: 1, HigherIsBetter: true})
			})
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/cluster_score", `{"clusters": `)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
		})

		Convey("When scoring fails", func() {
			deps.scoreErr = errors.New("service not started")
			w := do(mux, http.MethodPost, "/cluster_score", `{}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the method is not POST", func() {
			w := do(mux, http.MethodGet, "/cluster_score", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDistributionScoreRateLimit(t *testing.T) {
	Convey("Given a server limited to a burst of one", t, func() {
		mux := newMux(&mockDependencies{}, api.WithRateLimit(0.001, 1))

		Convey("When two requests arrive back to back", func() {
			first := do(mux, http.MethodPost, "/distribution_score", `{}`)
			second := do(mux, http.MethodPost, "/distribution_score", `{}`)

			Convey("Then the second is rejected with 429", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Body.String(), ShouldContainSubstring, "rate_limited")
			})
		})
	})
}

func TestSubmitScore(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a score is submitted", func() {
			w := do(mux, http.MethodPost, "/score", `{"entity": "edge", "score": 87}`)

			Convey("Then it is acknowledged and forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"status":"success"}`)
				So(deps.submissions, ShouldResemble, []submission{{entity: "edge", score: 87}})
			})
		})

		Convey("When the legacy cluster field is used", func() {
			w := do(mux, http.MethodPost, "/score", `{"cluster": "fog", "score": 0}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.submissions, ShouldResemble, []submission{{entity: "fog", score: 0}})
		})

		Convey("When the score is missing", func() {
			w := do(mux, http.MethodPost, "/score", `{"entity": "edge"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "missing_field")
			So(deps.submissions, ShouldBeEmpty)
		})

		Convey("When the entity is missing", func() {
			w := do(mux, http.MethodPost, "/score", `{"score": 10}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "missing_field")
		})

		Convey("When the service rejects the submission", func() {
			deps.submitErr = errors.New("service not started")
			w := do(mux, http.MethodPost, "/score", `{"entity": "edge", "score": 1}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When a request ID is supplied", func() {
			req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader(`{"entity": "edge", "score": 1}`))
			req.Header.Set(api.RequestIDHeader, "req-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})
	})
}

func TestReadScoresAndHealth(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{
			scores: map[string]int64{"edge": 100, "cloud": 12},
			health: types.Health{Status: types.StatusHealthy, PolicyStoreReachable: true, ScoresAge: 4},
		}
		mux := newMux(deps)

		Convey("When scores are read", func() {
			w := do(mux, http.MethodGet, "/scores", "")
			var got map[string]int64
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldResemble, deps.scores)
		})

		Convey("When the store is reachable", func() {
			w := do(mux, http.MethodGet, "/health", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"policy_store_reachable":true`)
		})

		Convey("When the store is unreachable", func() {
			deps.health = types.Health{Status: types.StatusUnhealthy, Error: "policy not found"}
			w := do(mux, http.MethodGet, "/health", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "policy not found")
		})

		Convey("When stats are read", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"strategy":"capped"`)
		})

		Convey("When metrics are scraped after a request", func() {
			_ = do(mux, http.MethodGet, "/scores", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "ahp_scorer_http_requests_total")
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then WrapKind keeps both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then WrapKind without a cause is NewKind", func() {
			So(api.WrapKind("api.op", api.ErrRateLimited, nil).Error(), ShouldEqual, "api.op: rate limited")
		})
	})
}
