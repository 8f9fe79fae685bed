package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for DrawLedger.
type Metrics struct {
	// --- Engine processing ---
	CommandsApplied  *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	EngineSequence   prometheus.Gauge

	// --- Domain ---
	BetsPlaced      prometheus.Counter
	BetsResolved    *prometheus.CounterVec
	PayoutsPaid     prometheus.Counter
	PayoutsUnpaid   prometheus.Counter
	DrawsCompleted  prometheus.Counter
	DrawsCancelled  *prometheus.CounterVec
	PoolTotal       prometheus.Gauge
	PoolAvailable   prometheus.Gauge
	PoolAccruedFees prometheus.Gauge

	// --- Channel & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_commands_applied_total",
			Help: "Commands successfully applied by the engine",
		}, []string{"command_type"}),

		CommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_commands_rejected_total",
			Help: "Commands rejected (dedup, validation, state guard)",
		}, []string{"command_type", "reason"}),

		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawledger_command_apply_duration_seconds",
			Help:    "Time to apply a single command in the engine",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawledger_engine_sequence",
			Help: "Current global sequence number",
		}),

		BetsPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_bets_placed_total",
			Help: "Bets accepted",
		}),

		BetsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_bets_resolved_total",
			Help: "Bets resolved (won/lost)",
		}, []string{"outcome"}),

		PayoutsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_payouts_paid_total",
			Help: "Winning payouts executed",
		}),

		PayoutsUnpaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_payouts_unpaid_total",
			Help: "Winning payouts deferred on pool shortfall",
		}),

		DrawsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_draws_completed_total",
			Help: "Draws fully resolved",
		}),

		DrawsCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_draws_cancelled_total",
			Help: "Draws cancelled (operator/stale)",
		}, []string{"path"}),

		PoolTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawledger_pool_total_balance",
			Help: "Pool total balance (fixed-point units)",
		}),

		PoolAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawledger_pool_available",
			Help: "Pool available for payouts",
		}),

		PoolAccruedFees: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawledger_pool_accrued_fees",
			Help: "Fees reserved for operator withdrawal",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawledger_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawledger_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawledger_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawledger_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawledger_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawledger_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawledger_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawledger_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawledger_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}

// SetPoolMetrics updates the pool gauges after a command mutates the pool.
func (m *Metrics) SetPoolMetrics(total, available, accruedFees int64) {
	m.PoolTotal.Set(float64(total))
	m.PoolAvailable.Set(float64(available))
	m.PoolAccruedFees.Set(float64(accruedFees))
}
