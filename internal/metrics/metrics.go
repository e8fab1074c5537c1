// Package metrics holds the Prometheus collectors for the client and server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source labels for ClientCallsTotal.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

var (
	ClientOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "online",
		Help:      "Result of the last reachability probe (1=online, 0=offline)",
	})

	ClientProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "probes_total",
		Help:      "Reachability probes by outcome",
	}, []string{"outcome"})

	ClientCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "calls_total",
		Help:      "Dispatched calls by endpoint and the source that answered",
	}, []string{"endpoint", "source"})

	ClientFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "fallbacks_total",
		Help:      "Remote attempts that fell back to the local store",
	}, []string{"endpoint"})

	ClientMirroredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "mirrored_total",
		Help:      "Remote write results appended to the local store",
	}, []string{"collection"})

	ClientRemoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imtti",
		Subsystem: "client",
		Name:      "remote_duration_seconds",
		Help:      "Remote call latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"endpoint"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by method and status class",
	}, []string{"method", "class"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imtti",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"method"})

	RecordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "server",
		Name:      "records_created_total",
		Help:      "Records created through the API",
	}, []string{"collection"})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "server",
		Name:      "logins_total",
		Help:      "Login attempts by role and outcome",
	}, []string{"role", "outcome"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imtti",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries by outcome (delivered, failed, dropped)",
	}, []string{"outcome"})
)

// StatusClass buckets an HTTP status code as "2xx", "3xx", "4xx" or "5xx".
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
