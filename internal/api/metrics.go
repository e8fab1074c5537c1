package api

import (
	"strconv"
	"time"

	"github.com/marcus/imtti/internal/metrics"
)

// observeRequest counts a served request by status class and records latency.
func observeRequest(method string, code int, dur time.Duration) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, metrics.StatusClass(code)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method).Observe(dur.Seconds())
}

// recordCreated counts a successful create for the records metrics.
func recordCreated(collection string) {
	metrics.RecordsCreatedTotal.WithLabelValues(collection).Inc()
}

// recordLogin counts a login attempt by role and outcome.
func recordLogin(role string, ok bool) {
	metrics.LoginsTotal.WithLabelValues(role, strconv.FormatBool(ok)).Inc()
}
