// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargewalk_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargewalk_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"path"})
)

// ObserveHTTPRequest records one served request. path should be the route
// pattern, not the raw URL.
func ObserveHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func IncHTTPInFlight() { httpRequestsInFlight.Inc() }

func DecHTTPInFlight() { httpRequestsInFlight.Dec() }

func IncHTTPRateLimited(path string) {
	httpRateLimited.WithLabelValues(path).Inc()
}
