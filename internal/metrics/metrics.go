// Package metrics owns the Prometheus registry for the intake service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intake"

type Metrics struct {
	registry *prometheus.Registry

	engineRuns      *prometheus.CounterVec
	engineDuration  *prometheus.HistogramVec
	mergeFields     *prometheus.CounterVec
	mergeDisagree   prometheus.Counter
	uploadsTotal    *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		engineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_runs_total",
				Help:      "Extraction engine runs by engine and outcome.",
			},
			[]string{"engine", "outcome"},
		),
		engineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_duration_seconds",
				Help:      "Extraction engine duration in seconds.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"engine"},
		),
		mergeFields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_fields_total",
				Help:      "Merged field values by winning source.",
			},
			[]string{"source"},
		),
		mergeDisagree: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_disagreements_total",
				Help:      "Fields where both engines returned different values.",
			},
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Document uploads by category and run outcome.",
			},
			[]string{"category", "outcome"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Background jobs by name and status.",
			},
			[]string{"job", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
	}

	registry.MustRegister(
		m.engineRuns,
		m.engineDuration,
		m.mergeFields,
		m.mergeDisagree,
		m.uploadsTotal,
		m.jobsTotal,
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEngine records one engine run. outcome is ok, empty or failed.
func (m *Metrics) ObserveEngine(engine, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.engineRuns.WithLabelValues(engine, outcome).Inc()
	m.engineDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// ObserveMerge adds the per-source field counts of one patch.
func (m *Metrics) ObserveMerge(sources map[string]int, disagreements int) {
	if m == nil {
		return
	}
	for source, n := range sources {
		if n > 0 {
			m.mergeFields.WithLabelValues(source).Add(float64(n))
		}
	}
	if disagreements > 0 {
		m.mergeDisagree.Add(float64(disagreements))
	}
}

func (m *Metrics) ObserveUpload(category, outcome string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveJob satisfies async.JobObserver.
func (m *Metrics) ObserveJob(name string, err error, _ time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobsTotal.WithLabelValues(name, status).Inc()
}

// GinMiddleware labels requests by route template so ids do not explode
// the label space.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
