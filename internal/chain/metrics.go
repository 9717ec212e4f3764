package chain

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

const (
	outcomeOK        = "ok"
	outcomeCancelled = "cancelled"
	outcomeUnknown   = "unknown"
)

type metrics struct {
	asks     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sources  prometheus.Histogram
}

var defaultMetrics = newMetrics(prometheus.DefaultRegisterer)

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		asks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfchat",
			Subsystem: "chain",
			Name:      "asks_total",
			Help:      "Questions asked, by outcome (ok, cancelled or error kind)",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "chain",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end time to answer a question in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		sources: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pdfchat",
			Subsystem: "chain",
			Name:      "retrieved_chunks",
			Help:      "Chunks placed in the prompt per answered question",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
	}
}

func (m *metrics) observe(outcome string, d time.Duration) {
	m.asks.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.duration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// outcomeOf labels a failed ask. Cancellation by the caller wins over the
// step's kind; a model timeout is still a generation failure.
func outcomeOf(ctx context.Context, err error) string {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return outcomeCancelled
	}
	if k := qaerr.KindOf(err); k != "" {
		return string(k)
	}
	return outcomeUnknown
}
