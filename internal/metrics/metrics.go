// Package metrics exposes Prometheus metrics for session operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the coordinator reports to.
type Recorder interface {
	RecordOperation(class string, kind string, duration time.Duration)
	RecordRejected(class string)
	RecordSessionState(status string)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	operations *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	state      *prometheus.GaugeVec
	states     []string
}

// NewCollector creates a Collector and registers its metrics with reg.
// states lists every session status so exactly one gauge is 1 at a time.
func NewCollector(reg prometheus.Registerer, states ...string) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certprep_session_operations_total",
			Help: "Session operations by class and outcome kind.",
		}, []string{"class", "kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certprep_session_operations_rejected_total",
			Help: "Session operations rejected because another operation was in flight.",
		}, []string{"class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certprep_session_operation_seconds",
			Help:    "Session operation latency including identity provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "certprep_session_state",
			Help: "Current session status (1 for the active status).",
		}, []string{"status"}),
		states: states,
	}

	reg.MustRegister(c.operations, c.rejected, c.latency, c.state)
	return c
}

func (c *Collector) RecordOperation(class string, kind string, duration time.Duration) {
	c.operations.WithLabelValues(class, kind).Inc()
	c.latency.WithLabelValues(class).Observe(duration.Seconds())
}

func (c *Collector) RecordRejected(class string) {
	c.rejected.WithLabelValues(class).Inc()
}

func (c *Collector) RecordSessionState(status string) {
	for _, s := range c.states {
		if s != status {
			c.state.WithLabelValues(s).Set(0)
		}
	}
	c.state.WithLabelValues(status).Set(1)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration) {}
func (Nop) RecordRejected(string)                         {}
func (Nop) RecordSessionState(string)                     {}

// Handler returns the HTTP handler for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
