package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the reconstruction pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	errorsTotal     prometheus.Counter
	runsTotal       *prometheus.CounterVec
	fallbacksTotal  prometheus.Counter
	segmentsFetched prometheus.Counter
	segmentsFailed  prometheus.Counter
	segmentRetries  prometheus.Counter
	bytesFetched    prometheus.Counter
	stageDuration   *prometheus.HistogramVec
	activeRuns      prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_requests_total",
		Help: "Total number of HTTP requests received",
	}, []string{"method", "route", "code"})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_runs_total",
		Help: "Finished acquisition runs by path and outcome",
	}, []string{"path", "outcome"})
	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_direct_fallbacks_total",
		Help: "Direct acquisitions that failed and fell back to chunked reconstruction",
	})
	segmentsFetched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_segments_fetched_total",
		Help: "Segments fetched successfully",
	})
	segmentsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_segments_failed_total",
		Help: "Segments that exhausted their retry budget",
	})
	segmentRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_segment_retries_total",
		Help: "Segment fetch retries",
	})
	bytesFetched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_segment_bytes_total",
		Help: "Bytes of segment data written to workspaces",
	})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hls_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage"})
	activeRuns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_active_runs",
		Help: "Number of runs currently executing",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		runsTotal,
		fallbacksTotal,
		segmentsFetched,
		segmentsFailed,
		segmentRetries,
		bytesFetched,
		stageDuration,
		activeRuns,
	)

	return &Metrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		errorsTotal:     errorsTotal,
		runsTotal:       runsTotal,
		fallbacksTotal:  fallbacksTotal,
		segmentsFetched: segmentsFetched,
		segmentsFailed:  segmentsFailed,
		segmentRetries:  segmentRetries,
		bytesFetched:    bytesFetched,
		stageDuration:   stageDuration,
		activeRuns:      activeRuns,
	}
}

// IncRequests counts one served request.
func (m *Metrics) IncRequests(method, route string, status int) {
	m.requestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// RunFinished records the outcome of a run. path is "direct" or "fallback"
// ("none" when the run failed before acquisition started).
func (m *Metrics) RunFinished(path, outcome string) {
	m.runsTotal.WithLabelValues(path, outcome).Inc()
}

// IncFallbacks increments the direct-to-fallback counter.
func (m *Metrics) IncFallbacks() {
	m.fallbacksTotal.Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetActiveRuns sets the active runs gauge.
func (m *Metrics) SetActiveRuns(n int) {
	m.activeRuns.Set(float64(n))
}

// SegmentFetched implements fetcher.Observer.
func (m *Metrics) SegmentFetched(bytes int64) {
	m.segmentsFetched.Inc()
	m.bytesFetched.Add(float64(bytes))
}

// SegmentRetried implements fetcher.Observer.
func (m *Metrics) SegmentRetried() {
	m.segmentRetries.Inc()
}

// SegmentFailed implements fetcher.Observer.
func (m *Metrics) SegmentFailed() {
	m.segmentsFailed.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active runs).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
