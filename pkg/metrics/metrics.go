package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics
type Metrics struct {
	// Dispatch metrics
	EventsDispatched     prometheus.Counter
	RecipientsResolved   prometheus.Histogram
	RecipientsSuppressed *prometheus.CounterVec
	DispatchLatency      prometheus.Histogram

	// Channel metrics
	ChannelSends   *prometheus.CounterVec
	ChannelLatency *prometheus.HistogramVec
	ChannelRetries *prometheus.CounterVec

	// Digest metrics
	DigestCycles       prometheus.Counter
	DigestsSent        prometheus.Counter
	DigestsSkipped     *prometheus.CounterVec
	DigestCycleLatency prometheus.Histogram
	QueueDepth         prometheus.Gauge

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all engine metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		EventsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Total number of issue events handed to the dispatcher",
		}),
		RecipientsResolved: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipients_resolved",
			Help:      "Number of candidate recipients per event",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		RecipientsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipients_suppressed_total",
			Help:      "Recipients dropped before delivery, by reason",
		}, []string{"reason"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent fanning out one event",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		ChannelSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_sends_total",
			Help:      "Delivery attempts by channel and outcome",
		}, []string{"channel", "status"}),
		ChannelLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_send_duration_seconds",
			Help:      "Duration of channel sends",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"channel"}),
		ChannelRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_retry_attempts_total",
			Help:      "Retry attempts by channel",
		}, []string{"channel"}),
		DigestCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_cycles_total",
			Help:      "Total digest scheduler passes",
		}),
		DigestsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_sent_total",
			Help:      "Total digests delivered",
		}),
		DigestsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_skipped_total",
			Help:      "Digest runs skipped, by reason",
		}, []string{"reason"}),
		DigestCycleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "digest_cycle_duration_seconds",
			Help:      "Time spent in one digest scheduler pass",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending_notifications",
			Help:      "Current number of pending queued notifications",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewForTest builds an unregistered metrics set so parallel tests do not
// collide on the default prometheus registry.
func NewForTest() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		EventsDispatched:     f.NewCounter(prometheus.CounterOpts{Name: "events_dispatched_total"}),
		RecipientsResolved:   f.NewHistogram(prometheus.HistogramOpts{Name: "recipients_resolved"}),
		RecipientsSuppressed: f.NewCounterVec(prometheus.CounterOpts{Name: "recipients_suppressed_total"}, []string{"reason"}),
		DispatchLatency:      f.NewHistogram(prometheus.HistogramOpts{Name: "dispatch_duration_seconds"}),
		ChannelSends:         f.NewCounterVec(prometheus.CounterOpts{Name: "channel_sends_total"}, []string{"channel", "status"}),
		ChannelLatency:       f.NewHistogramVec(prometheus.HistogramOpts{Name: "channel_send_duration_seconds"}, []string{"channel"}),
		ChannelRetries:       f.NewCounterVec(prometheus.CounterOpts{Name: "channel_retry_attempts_total"}, []string{"channel"}),
		DigestCycles:         f.NewCounter(prometheus.CounterOpts{Name: "digest_cycles_total"}),
		DigestsSent:          f.NewCounter(prometheus.CounterOpts{Name: "digests_sent_total"}),
		DigestsSkipped:       f.NewCounterVec(prometheus.CounterOpts{Name: "digests_skipped_total"}, []string{"reason"}),
		DigestCycleLatency:   f.NewHistogram(prometheus.HistogramOpts{Name: "digest_cycle_duration_seconds"}),
		QueueDepth:           f.NewGauge(prometheus.GaugeOpts{Name: "queue_pending_notifications"}),
		DatabaseOperations:   f.NewCounterVec(prometheus.CounterOpts{Name: "database_operations_total"}, []string{"operation", "status"}),
	}
}
