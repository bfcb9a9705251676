package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portal_weather"

// Metrics holds the Prometheus collectors for feed fetching and aggregation.
type Metrics struct {
	FeedFetches   *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram

	// Aggregation diagnostics.
	DaysAggregated  prometheus.Histogram
	DefaultedValues prometheus.Counter
	UnparsedValues  prometheus.Counter
	UndatedSlots    prometheus.Counter

	StaleSnapshots     prometheus.Counter
	PublishedSnapshots *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Forecast feed fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a successful forecast feed fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		DaysAggregated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregated_days",
			Help:      "Number of daily summaries produced per feed.",
			Buckets:   []float64{0, 1, 2, 3, 5, 7},
		}),
		DefaultedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaulted_values_total",
			Help:      "Slot readings replaced by a default because the element or value was missing.",
		}),
		UnparsedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparsed_values_total",
			Help:      "Numeric readings excluded from aggregation because they did not parse.",
		}),
		UndatedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undated_slots_total",
			Help:      "Condition slots skipped because their start time did not parse.",
		}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_total",
			Help:      "Snapshots discarded because a newer one was already stored.",
		}),
		PublishedSnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_snapshots_total",
			Help:      "Snapshots published to the message broker by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates all metrics and registers them with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FetchDuration,
		m.DaysAggregated,
		m.DefaultedValues,
		m.UnparsedValues,
		m.UndatedSlots,
		m.StaleSnapshots,
		m.PublishedSnapshots,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
