package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Commit outcomes recorded by RecordCommitResult.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeDropped  = "dropped"
)

var latencyBucketsMs = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring engine
	scoringRequests     prometheus.Counter
	scoringLatency      prometheus.Histogram
	scoringCandidates   prometheus.Histogram
	scoringCriteria     prometheus.Histogram
	degenerateCriterion prometheus.Counter

	// Score collector
	scoreSubmissions  *prometheus.CounterVec
	cycleResets       prometheus.Counter
	reportedEntities  prometheus.Gauge
	commitsTriggered  prometheus.Counter
	commitsSuppressed *prometheus.CounterVec
	commitInFlight    prometheus.Gauge

	// Commit pipeline
	commitResults       *prometheus.CounterVec
	commitLatency       prometheus.Histogram
	commitQueueSize     prometheus.Gauge
	commitQueueCapacity prometheus.Gauge
	commitEnqueueErrors *prometheus.CounterVec
	policyStoreChecks   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ahp",
		subsystem:        "scorer",
		histogramBuckets: latencyBucketsMs,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)
	sizeBuckets := prometheus.ExponentialBuckets(1, 2, 10)

	m.scoringRequests = auto.NewCounter(m.counterOpts("scoring_requests_total", "Total number of distribution scoring requests"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Distribution scoring latency in milliseconds", m.histogramBuckets))
	m.scoringCandidates = auto.NewHistogram(m.histogramOpts("scoring_candidates", "Candidates per scoring request", sizeBuckets))
	m.scoringCriteria = auto.NewHistogram(m.histogramOpts("scoring_criteria", "Criteria per scoring request", sizeBuckets))
	m.degenerateCriterion = auto.NewCounter(m.counterOpts("degenerate_criteria_total", "Criteria whose values were all equal and fell back to uniform weights"))

	m.scoreSubmissions = auto.NewCounterVec(m.counterOpts("score_submissions_total", "Entity score submissions"), []string{"entity"})
	m.cycleResets = auto.NewCounter(m.counterOpts("collection_cycle_resets_total", "Collection cycles cleared because they went stale"))
	m.reportedEntities = auto.NewGauge(m.gaugeOpts("reported_entities", "Entities that reported in the current collection cycle"))
	m.commitsTriggered = auto.NewCounter(m.counterOpts("commits_triggered_total", "Policy commits triggered by complete collection cycles"))
	m.commitsSuppressed = auto.NewCounterVec(m.counterOpts("commits_suppressed_total", "Complete collection cycles that did not trigger a commit"), []string{"reason"})
	m.commitInFlight = auto.NewGauge(m.gaugeOpts("commit_in_flight", "1 while a policy commit is being applied"))

	m.commitResults = auto.NewCounterVec(m.counterOpts("commit_results_total", "Policy commit results by outcome"), []string{"outcome"})
	m.commitLatency = auto.NewHistogram(m.histogramOpts("commit_latency_milliseconds", "Policy store patch latency in milliseconds", m.histogramBuckets))
	m.commitQueueSize = auto.NewGauge(m.gaugeOpts("commit_queue_size", "Commits waiting in the queue"))
	m.commitQueueCapacity = auto.NewGauge(m.gaugeOpts("commit_queue_capacity", "Capacity of the commit queue"))
	m.commitEnqueueErrors = auto.NewCounterVec(m.counterOpts("commit_enqueue_errors_total", "Commits that could not be queued"), []string{"reason"})
	m.policyStoreChecks = auto.NewCounterVec(m.counterOpts("policy_store_checks_total", "Policy store liveness checks by result"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint and type"), []string{"endpoint", "method", "error_type"})
	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap memory in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
}

// RecordScoringRequest counts a scoring request and its size.
func (m *Manager) RecordScoringRequest(candidates, criteria int) {
	m.scoringRequests.Inc()
	m.scoringCandidates.Observe(float64(candidates))
	m.scoringCriteria.Observe(float64(criteria))
}

// RecordScoreSubmission counts one entity score submission.
func (m *Manager) RecordScoreSubmission(entity string) {
	m.scoreSubmissions.WithLabelValues(entity).Inc()
}

// RecordCommitResult counts a finished commit. Unknown outcomes are rejected.
func (m *Manager) RecordCommitResult(outcome string, latencyMs float64) error {
	switch outcome {
	case OutcomeSuccess, OutcomeNotFound, OutcomeRejected, OutcomeError, OutcomeDropped:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOutcome, outcome)
	}
	m.commitResults.WithLabelValues(outcome).Inc()
	if outcome != OutcomeDropped {
		m.commitLatency.Observe(latencyMs)
	}
	return nil
}

// RecordScoringRequest counts a scoring request and its size.
func RecordScoringRequest(candidates, criteria int) {
	globalManager.RecordScoringRequest(candidates, criteria)
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordDegenerateCriterion counts a criterion that fell back to uniform weights.
func RecordDegenerateCriterion() {
	globalManager.degenerateCriterion.Inc()
}

// RecordScoreSubmission counts one entity score submission.
func RecordScoreSubmission(entity string) {
	globalManager.RecordScoreSubmission(entity)
}

// RecordCycleReset counts a stale collection cycle being cleared.
func RecordCycleReset() {
	globalManager.cycleResets.Inc()
}

// UpdateReportedEntities sets the number of entities in the current cycle.
func UpdateReportedEntities(count int) {
	globalManager.reportedEntities.Set(float64(count))
}

// RecordCommitTriggered counts a commit leaving the collector.
func RecordCommitTriggered() {
	globalManager.commitsTriggered.Inc()
}

// RecordCommitSuppressed counts a complete cycle that did not commit.
func RecordCommitSuppressed(reason string) {
	globalManager.commitsSuppressed.WithLabelValues(reason).Inc()
}

// UpdateCommitInFlight flags whether a commit is being applied.
func UpdateCommitInFlight(inFlight bool) {
	v := 0.0
	if inFlight {
		v = 1
	}
	globalManager.commitInFlight.Set(v)
}

// RecordCommitResult counts a finished commit with its latency.
func RecordCommitResult(outcome string, latencyMs float64) error {
	return globalManager.RecordCommitResult(outcome, latencyMs)
}

// UpdateCommitQueueSize sets the number of queued commits.
func UpdateCommitQueueSize(size int) {
	globalManager.commitQueueSize.Set(float64(size))
}

// UpdateCommitQueueCapacity sets the commit queue capacity.
func UpdateCommitQueueCapacity(capacity int) {
	globalManager.commitQueueCapacity.Set(float64(capacity))
}

// RecordCommitEnqueueError counts a commit that could not be queued.
func RecordCommitEnqueueError(reason string) {
	globalManager.commitEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordPolicyStoreCheck counts a policy store liveness check.
func RecordPolicyStoreCheck(reachable bool) {
	result := "reachable"
	if !reachable {
		result = "unreachable"
	}
	globalManager.policyStoreChecks.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry backing the package-level metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
