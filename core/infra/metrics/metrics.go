// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayMetrics captures request metrics for the deploy gateway.
type GatewayMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// DeployMetrics captures deploy pipeline outcomes.
type DeployMetrics interface {
	IncUpload(kind string)
	IncDeploy(status string)
	IncValidationFailure(tag string)
}

// Noop implements both interfaces without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncUpload(string)                               {}
func (Noop) IncDeploy(string)                               {}
func (Noop) IncValidationFailure(string)                    {}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

type gatewayProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	once     sync.Once
}

// NewGatewayProm constructs a GatewayMetrics with counters/histograms.
func NewGatewayProm(namespace string) GatewayMetrics {
	g := &gatewayProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	g.once.Do(func() {
		prometheus.MustRegister(g.requests, g.latency)
	})
	return g
}

func (g *gatewayProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	g.requests.WithLabelValues(method, route, status).Inc()
	g.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

type deployProm struct {
	uploads     *prometheus.CounterVec
	deploys     *prometheus.CounterVec
	validations *prometheus.CounterVec
	once        sync.Once
}

// NewDeployProm constructs a DeployMetrics with outcome counters.
func NewDeployProm(namespace string) DeployMetrics {
	d := &deployProm{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded files by kind",
		}, []string{"kind"}),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploys_total",
			Help:      "Finalized deploys by status",
		}, []string{"status"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Deploy validation failures by tag",
		}, []string{"tag"}),
	}
	d.once.Do(func() {
		prometheus.MustRegister(d.uploads, d.deploys, d.validations)
	})
	return d
}

func (d *deployProm) IncUpload(kind string) {
	d.uploads.WithLabelValues(kind).Inc()
}

func (d *deployProm) IncDeploy(status string) {
	d.deploys.WithLabelValues(status).Inc()
}

func (d *deployProm) IncValidationFailure(tag string) {
	d.validations.WithLabelValues(tag).Inc()
}
