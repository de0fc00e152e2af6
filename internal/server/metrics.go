package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posttran_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posttran_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	contentLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posttran_content_length_bytes",
			Help:    "Size of submitted post content in bytes",
			Buckets: []float64{0, 64, 256, 1024, 4096, 16384, 65536},
		},
	)

	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posttran_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
	)
)
