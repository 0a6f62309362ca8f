package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	operations     *prometheus.CounterVec
	verdicts       *prometheus.CounterVec
	sessionActive  prometheus.Gauge
	blockedNames   prometheus.Gauge
	requestLatency *prometheus.HistogramVec
}

// NewMetrics registers the hostguard collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostguard_operations_total",
				Help: "Operations handled, by operation and result",
			},
			[]string{"op", "result"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostguard_verdicts_total",
				Help: "Content and webpage verdicts, by source and outcome",
			},
			[]string{"source", "verdict"},
		),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostguard_session_active",
			Help: "1 while blocking is enabled",
		}),
		blockedNames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostguard_blocked_names",
			Help: "Names currently mapped to the loopback address",
		}),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostguard_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
	m.registry.MustRegister(
		m.operations, m.verdicts, m.sessionActive, m.blockedNames, m.requestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) op(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(name, result).Inc()
}

func (m *Metrics) verdict(source string, block bool) {
	v := "allow"
	if block {
		v = "block"
	}
	m.verdicts.WithLabelValues(source, v).Inc()
}

func (m *Metrics) session(active bool, blocked int) {
	if active {
		m.sessionActive.Set(1)
	} else {
		m.sessionActive.Set(0)
	}
	m.blockedNames.Set(float64(blocked))
}

// instrument records request latency labelled by the matched route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
