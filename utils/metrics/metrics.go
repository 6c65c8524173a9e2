package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	registry = prometheus.NewRegistry()
	logger   *zap.Logger
)

// Initialize routes default registrations to the engine registry.
func Initialize(log *zap.Logger) {
	logger = log
	prometheus.DefaultRegisterer = registry
}

// Handler serves the engine registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Register adds collectors built outside this package to the engine registry.
func Register(collectors ...prometheus.Collector) {
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil && logger != nil {
			logger.Warn("Failed to register collector", zap.Error(err))
		}
	}
}

// ReadMetrics covers the snapshot read path.
type ReadMetrics struct {
	SnapshotReads   prometheus.Counter
	SnapshotRetries prometheus.Counter
	StaleSnapshots  prometheus.Counter
	ReadLatency     prometheus.Histogram
	PoolReserve     *prometheus.GaugeVec
}

func NewReadMetrics(namespace string) *ReadMetrics {
	return &ReadMetrics{
		SnapshotReads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reads_total",
			Help:      "Total number of full snapshot batch reads",
		}),
		SnapshotRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_retries_total",
			Help:      "Total number of snapshot batches re-read for staleness",
		}),
		StaleSnapshots: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_total",
			Help:      "Total number of snapshot batches rejected as stale",
		}),
		ReadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_latency_seconds",
			Help:      "Latency of a full snapshot batch read",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		PoolReserve: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserve",
			Help:      "Last observed pool reserve by pool and side",
		}, []string{"pool", "side"}),
	}
}

// DecisionMetrics covers spread evaluation and the profit decision.
type DecisionMetrics struct {
	PairsEvaluated  prometheus.Counter
	SpreadPercent   prometheus.Histogram
	BelowThreshold  prometheus.Counter
	EstimatedProfit prometheus.Histogram
	GasCost         prometheus.Histogram
}

func NewDecisionMetrics(namespace string) *DecisionMetrics {
	return &DecisionMetrics{
		PairsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_evaluated_total",
			Help:      "Total number of pool pairs evaluated for spread",
		}),
		SpreadPercent: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spread_percent",
			Help:      "Observed best spread per cycle, in percent",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BelowThreshold: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "below_threshold_total",
			Help:      "Total number of cycles whose best spread missed the threshold",
		}),
		EstimatedProfit: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimated_profit",
			Help:      "Estimated net profit of accepted plans, in base asset units",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
		GasCost: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_cost",
			Help:      "Charged gas cost per plan, in base asset units",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
	}
}

