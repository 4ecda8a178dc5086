package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's instrumentation: the producer side tracks outbox
// drain progress, the consumer side tracks delivery outcomes per group.
type Metrics struct {
	OutboxEntriesPublished prometheus.Counter
	OutboxPublishFailures  prometheus.Counter
	OutboxDrainLatency     prometheus.Histogram

	EventsProcessed  *prometheus.CounterVec
	EventsDuplicate  *prometheus.CounterVec
	EventsRetried    *prometheus.CounterVec
	EventsDeadLetter *prometheus.CounterVec
	HandlerLatency   *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers against an explicit registerer; tests use a fresh
// registry so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OutboxEntriesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_entries_published_total",
			Help:      "Total number of outbox entries durably accepted by the broker",
		}),
		OutboxPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Total number of failed broker appends from the outbox publisher",
		}),
		OutboxDrainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_drain_duration_seconds",
			Help:      "Time spent draining one batch of pending outbox entries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of events acknowledged after a durably applied effect",
		}, []string{"consumer_group"}),
		EventsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Total number of redeliveries acknowledged as idempotent no-ops",
		}, []string{"consumer_group"}),
		EventsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_retried_total",
			Help:      "Total number of transient handler failures that were retried",
		}, []string{"consumer_group"}),
		EventsDeadLetter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dead_lettered_total",
			Help:      "Total number of events routed to the dead-letter sink",
		}, []string{"consumer_group"}),
		HandlerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in one handler invocation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"consumer_group"}),
	}
}
