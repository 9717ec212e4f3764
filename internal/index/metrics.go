package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildDuration tracks full index builds, embedding included.
	buildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds in seconds, including embedding",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"backend"},
	)

	buildFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "build_failures_total",
			Help:      "Total number of failed index builds",
		},
		[]string{"backend"},
	)

	indexedChunks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks in the most recently built index",
		},
		[]string{"backend"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "index",
			Name:      "query_duration_seconds",
			Help:      "Duration of index queries in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"backend"},
	)
)
