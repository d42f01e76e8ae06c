package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Data channel metrics
	SnapshotsPublished prometheus.Counter
	SnapshotsApplied   prometheus.Counter
	SnapshotSize       prometheus.Histogram

	// Filter channel metrics. FilterEchoesSuppressed counts remote-applied
	// search changes that were not republished; it staying in lockstep with
	// FilterApplied is what "no broadcast storm" looks like on a dashboard.
	FilterPublished        prometheus.Counter
	FilterApplied          prometheus.Counter
	FilterEchoesSuppressed prometheus.Counter
	FilterRateLimited      prometheus.Counter

	// Registration workflow metrics
	Registrations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics against reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "status"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),

		SnapshotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Total number of record snapshots broadcast on the data channel",
		}),
		SnapshotsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_applied_total",
			Help:      "Total number of record snapshots received and applied",
		}),
		SnapshotSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Number of records carried by a broadcast snapshot",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000},
		}),

		FilterPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_published_total",
			Help:      "Total number of locally originated search changes broadcast",
		}),
		FilterApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_applied_total",
			Help:      "Total number of remote search changes applied",
		}),
		FilterEchoesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_echoes_suppressed_total",
			Help:      "Total number of remote-applied search changes withheld from republish",
		}),
		FilterRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_rate_limited_total",
			Help:      "Total number of local search broadcasts dropped by the rate limiter",
		}),

		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by outcome",
		}, []string{"outcome"}),
	}
}

// New registers against the default prometheus registry.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, prometheus.DefaultRegisterer)
}
