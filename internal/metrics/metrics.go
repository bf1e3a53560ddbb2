// v0
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns every collector exported by the service.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	backendDuration   *prometheus.HistogramVec
	backendErrors     *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	analysesTotal     *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	feedPublished     *prometheus.CounterVec
	feedQueueDepth    prometheus.Gauge
	cbState           *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry. Tests get isolated
// collectors this way.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		gatherer: g,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total reading cache hits.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total reading cache misses.",
		}),
		backendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Histogram of data backend request durations by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		backendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backend_request_errors_total",
			Help: "Total data backend errors by operation.",
		}, []string{"operation"}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestration_runs_total",
			Help: "Finished orchestration runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		analysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consumption_analyses_total",
			Help: "Peak-power analysis requests by result.",
		}, []string{"result"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "User notifications emitted by kind.",
		}, []string{"kind"}),
		feedPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_publish_total",
			Help: "Change feed messages by result.",
		}, []string{"result"}),
		feedQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "feed_queue_depth",
			Help: "Change feed messages waiting for delivery.",
		}),
		cbState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 open, 2 half).",
		}, []string{"target"}),
	}
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and records their duration under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// BackendRequest records one call to the data backend.
func (m *Metrics) BackendRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.backendErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RunFinished(kind, outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) AnalysisSettled(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.analysesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) FeedPublish(result string) {
	if m == nil {
		return
	}
	m.feedPublished.WithLabelValues(result).Inc()
}

func (m *Metrics) SetFeedQueueDepth(n int) {
	if m == nil {
		return
	}
	m.feedQueueDepth.Set(float64(n))
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}
