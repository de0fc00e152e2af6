package page

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posttran_pages_total",
			Help: "Total number of processed posts by outcome",
		},
		[]string{"outcome"}, // empty, unknown, passthrough, cached, translated, fallback, failed
	)

	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posttran_detections_total",
			Help: "Total number of language detections by detected language",
		},
		[]string{"language"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posttran_memory_lookups_total",
			Help: "Translation memory lookups",
		},
		[]string{"result"}, // hit, miss
	)

	translationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posttran_translation_duration_seconds",
			Help:    "Latency of the selected provider per translated piece",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service"},
	)
)
